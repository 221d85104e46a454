package db

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"artomate-backend/internal/config"
)

var (
	// fsClient is the global Firestore client instance.
	fsClient *firestore.Client
	// fbAuthClient is the global Firebase Auth client instance.
	fbAuthClient *auth.Client
)

// InitFirestore initializes the Firebase Admin SDK and sets up the Firestore and Auth clients.
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS (file), FIREBASE_SERVICE_ACCOUNT_JSON_BASE64,
// or Application Default Credentials, in that order.
func InitFirestore(ctx context.Context, appConfig *config.Config, logger *zap.Logger) error {
	if appConfig == nil {
		return fmt.Errorf("InitFirestore: appConfig cannot be nil")
	}

	credsOption, source, err := credentialsOption(appConfig)
	if err != nil {
		return err
	}
	if source == credentialsFile {
		if _, statErr := os.Stat(appConfig.GoogleApplicationCredentials); os.IsNotExist(statErr) {
			logger.Warn("Credentials file does not exist, Firebase may fall back to ADC",
				zap.String("path", appConfig.GoogleApplicationCredentials))
		}
	}
	logger.Info("Initializing Firebase", zap.String("credentials", source), zap.String("projectID", appConfig.FirebaseProjectID))

	var firebaseAppConfig *firebase.Config
	if appConfig.FirebaseProjectID != "" {
		firebaseAppConfig = &firebase.Config{ProjectID: appConfig.FirebaseProjectID}
	}

	var app *firebase.App
	if credsOption != nil {
		app, err = firebase.NewApp(ctx, firebaseAppConfig, credsOption)
	} else {
		app, err = firebase.NewApp(ctx, firebaseAppConfig)
	}
	if err != nil {
		return fmt.Errorf("firebase.NewApp: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return fmt.Errorf("app.Firestore: %w", err)
	}
	fsClient = client

	authCl, err := app.Auth(ctx)
	if err != nil {
		// Init is considered failed as a whole.
		fsClient.Close()
		fsClient = nil
		return fmt.Errorf("app.Auth: %w", err)
	}
	fbAuthClient = authCl

	logger.Info("Firestore and Firebase Auth clients initialized")
	return nil
}

const (
	credentialsFile   = "file"
	credentialsBase64 = "base64"
	credentialsADC    = "adc"
)

func credentialsOption(appConfig *config.Config) (option.ClientOption, string, error) {
	switch {
	case appConfig.GoogleApplicationCredentials != "":
		return option.WithCredentialsFile(appConfig.GoogleApplicationCredentials), credentialsFile, nil
	case appConfig.FirebaseServiceAccountJSONBase64 != "":
		decodedJSON, err := base64.StdEncoding.DecodeString(appConfig.FirebaseServiceAccountJSONBase64)
		if err != nil {
			return nil, "", fmt.Errorf("failed to decode FIREBASE_SERVICE_ACCOUNT_JSON_BASE64: %w", err)
		}
		return option.WithCredentialsJSON(decodedJSON), credentialsBase64, nil
	default:
		return nil, credentialsADC, nil
	}
}

// GetFirestoreClient returns the global Firestore client, nil before InitFirestore succeeds.
func GetFirestoreClient() *firestore.Client {
	return fsClient
}

// GetFirebaseAuthClient returns the global Firebase Auth client, nil before InitFirestore succeeds.
func GetFirebaseAuthClient() *auth.Client {
	return fbAuthClient
}

// Close releases the Firestore client.
func Close() error {
	if fsClient == nil {
		return nil
	}
	return fsClient.Close()
}

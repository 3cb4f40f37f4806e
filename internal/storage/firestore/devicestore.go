// Package firestore implements the DeviceStore on Google Cloud Firestore.
package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"

	"github.com/tinywideclouds/go-dispatch-router/pkg/routing"
)

// DeviceStore implements routing.DeviceStore using Google Cloud Firestore.
type DeviceStore struct {
	client *firestore.Client
}

func NewDeviceStore(client *firestore.Client) *DeviceStore {
	return &DeviceStore{client: client}
}

// deviceRecord is the internal DB representation of a registered device.
type deviceRecord struct {
	Token      string    `firestore:"token"`
	Platform   string    `firestore:"platform"`
	Permission string    `firestore:"permission"`
	UpdatedAt  time.Time `firestore:"updated_at"`
}

func (s *DeviceStore) Register(ctx context.Context, user urn.URN, device routing.Device) error {
	// Use hash of token as Doc ID to prevent duplicates and hot-spotting
	docID := hashToken(device.Token)

	record := deviceRecord{
		Token:      device.Token,
		Platform:   device.Platform,
		Permission: string(device.Permission),
		UpdatedAt:  time.Now(),
	}

	_, err := s.deviceRef(user, docID).Set(ctx, record)
	return err
}

func (s *DeviceStore) Unregister(ctx context.Context, user urn.URN, token string) error {
	docID := hashToken(token)
	_, err := s.deviceRef(user, docID).Delete(ctx)
	return err
}

func (s *DeviceStore) Fetch(ctx context.Context, user urn.URN) ([]routing.Device, error) {
	iter := s.devicesCollection(user).Documents(ctx)
	defer iter.Stop()

	devices := make([]routing.Device, 0)

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var record deviceRecord
		if err := doc.DataTo(&record); err != nil {
			// Corrupt rows are skipped rather than failing the whole fetch.
			continue
		}
		if record.Token == "" {
			continue
		}

		devices = append(devices, routing.Device{
			Token:      record.Token,
			Platform:   record.Platform,
			Permission: routing.PermissionStatus(record.Permission),
			UpdatedAt:  record.UpdatedAt,
		})
	}

	return devices, nil
}

// --- Helpers ---

// deviceRef: users/{userID}/devices/{deviceHash}
func (s *DeviceStore) deviceRef(user urn.URN, docID string) *firestore.DocumentRef {
	return s.devicesCollection(user).Doc(docID)
}

func (s *DeviceStore) devicesCollection(user urn.URN) *firestore.CollectionRef {
	// Assumes a root collection "users"
	return s.client.Collection("users").Doc(user.String()).Collection("devices")
}

func hashToken(t string) string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}

var _ routing.DeviceStore = (*DeviceStore)(nil)

// Package localstore keeps the per-deployment and per-user values the web
// client used to hold in browser storage: the transactions mirror used for
// export, the PDF attachment bin and the dark-mode flag.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tesouraria/internal/core"
)

const (
	KeyTransactions = "church-transactions"
	KeyAttachments  = "church-pdf-attachments"
	KeyDarkMode     = "church-dark-mode"

	// GlobalNamespace holds values shared by every user.
	GlobalNamespace = "global"
)

func userNamespace(userID string) string {
	return "user:" + userID
}

// Store reads and writes JSON values through a KV.
type Store struct {
	kv KV
}

func New(kv KV) *Store {
	return &Store{kv: kv}
}

func (s *Store) load(ctx context.Context, namespace, key string, v any) (bool, error) {
	data, err := s.kv.Get(ctx, namespace, key)
	if errors.Is(err, ErrNoValue) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) save(ctx context.Context, namespace, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.kv.Put(ctx, namespace, key, data)
}

// Transactions returns the mirrored ledger in the backup field convention.
func (s *Store) Transactions(ctx context.Context) ([]core.ExternalRecord, error) {
	records := []core.ExternalRecord{}
	if _, err := s.load(ctx, GlobalNamespace, KeyTransactions, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) SaveTransactions(ctx context.Context, records []core.ExternalRecord) error {
	if records == nil {
		records = []core.ExternalRecord{}
	}
	return s.save(ctx, GlobalNamespace, KeyTransactions, records)
}

func (s *Store) Attachments(ctx context.Context, userID string) ([]core.Attachment, error) {
	list := []core.Attachment{}
	if _, err := s.load(ctx, userNamespace(userID), KeyAttachments, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) SaveAttachments(ctx context.Context, userID string, list []core.Attachment) error {
	if list == nil {
		list = []core.Attachment{}
	}
	return s.save(ctx, userNamespace(userID), KeyAttachments, list)
}

// DarkMode is false until the user turns it on.
func (s *Store) DarkMode(ctx context.Context, userID string) (bool, error) {
	var on bool
	if _, err := s.load(ctx, userNamespace(userID), KeyDarkMode, &on); err != nil {
		return false, err
	}
	return on, nil
}

func (s *Store) SetDarkMode(ctx context.Context, userID string, on bool) error {
	return s.save(ctx, userNamespace(userID), KeyDarkMode, on)
}

// Package sealed wraps a Storage so that session tokens are encrypted at
// rest with NaCl secretbox.
package sealed

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/storage"
)

const (
	KeySize   = 32
	nonceSize = 24
)

var (
	ErrInvalidKey  = errors.New("sealing key must be 32 bytes")
	ErrCorruptSeal = errors.New("stored token could not be unsealed")
)

// Storage seals Profile.Token on save and opens it on read
type Storage struct {
	storage.Storage
	key *[KeySize]byte
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// New wraps inner with token sealing under key
func New(inner storage.Storage, key []byte) (*Storage, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	var k [KeySize]byte
	copy(k[:], key)
	return &Storage{Storage: inner, key: &k}, nil
}

// ParseKey decodes a hex encoded key
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode sealing key: %w", err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// GenerateKey returns a fresh random key
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (s *Storage) SaveProfile(ctx context.Context, profile *model.Profile) error {
	sealed := *profile
	if profile.Token != "" {
		token, err := s.seal(profile.Token)
		if err != nil {
			return err
		}
		sealed.Token = token
	}
	return s.Storage.SaveProfile(ctx, &sealed)
}

func (s *Storage) GetProfile(ctx context.Context, username model.Username) (*model.Profile, error) {
	profile, err := s.Storage.GetProfile(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.open(profile)
}

func (s *Storage) GetLastProfile(ctx context.Context) (*model.Profile, error) {
	profile, err := s.Storage.GetLastProfile(ctx)
	if err != nil {
		return nil, err
	}
	return s.open(profile)
}

// Close closes the inner storage when it holds a connection
func (s *Storage) Close() error {
	if closer, ok := s.Storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (s *Storage) open(profile *model.Profile) (*model.Profile, error) {
	if profile.Token == "" {
		return profile, nil
	}
	token, err := s.unseal(profile.Token)
	if err != nil {
		return nil, err
	}
	opened := *profile
	opened.Token = token
	return &opened, nil
}

func (s *Storage) seal(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, s.key)
	return base64.RawStdEncoding.EncodeToString(box), nil
}

func (s *Storage) unseal(encoded string) (string, error) {
	box, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil || len(box) < nonceSize+secretbox.Overhead {
		return "", ErrCorruptSeal
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, s.key)
	if !ok {
		return "", ErrCorruptSeal
	}
	return string(plain), nil
}

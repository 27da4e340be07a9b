package server

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"
)

var (
	errNoKeypair  = errors.New("token keypair not initialized")
	errUnknownKey = errors.New("token was encrypted for another key")
	errBadToken   = errors.New("token cannot be decrypted")
)

type rsaKeypair struct {
	keyID string
	priv  *rsa.PrivateKey
	pub   *rsa.PublicKey
}

// keyring holds the ephemeral keypair clients use to encrypt their API
// token before handing it to a hosted session.
type keyring struct {
	mu  sync.RWMutex
	key *rsaKeypair
}

func (k *keyring) init(bits int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.key != nil {
		return nil
	}

	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return err
	}

	k.key = &rsaKeypair{
		keyID: fmt.Sprintf("k-%d", time.Now().UnixNano()),
		priv:  priv,
		pub:   &priv.PublicKey,
	}
	return nil
}

func (k *keyring) current() *rsaKeypair {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.key
}

func (k *keyring) publicKeySPKIB64() (keyID string, spkiB64 string, err error) {
	key := k.current()
	if key == nil {
		return "", "", errNoKeypair
	}

	spkiDER, err := x509.MarshalPKIXPublicKey(key.pub)
	if err != nil {
		return "", "", err
	}
	return key.keyID, base64.StdEncoding.EncodeToString(spkiDER), nil
}

func (k *keyring) decryptB64(ciphertextB64 string, keyID string) (string, error) {
	key := k.current()
	if key == nil {
		return "", errNoKeypair
	}
	if keyID != "" && key.keyID != keyID {
		return "", errUnknownKey
	}

	sealed, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", errBadToken
	}
	token, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, key.priv, sealed, nil)
	if err != nil {
		return "", errBadToken
	}
	return string(token), nil
}

// decryptFields decrypts in place the string fields of *ptr tagged
// `secure:"rsa_oaep_b64"`. A `secure_key:"<Field>"` tag names the field
// carrying the key id.
func (k *keyring) decryptFields(ptr any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("decryptFields expects a non-nil pointer")
	}
	v := rv.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("decryptFields expects a pointer to struct")
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" || sf.Tag.Get("secure") != "rsa_oaep_b64" {
			continue
		}

		f := v.Field(i)
		if f.Kind() != reflect.String || !f.CanSet() || f.String() == "" {
			continue
		}

		keyID := ""
		if name := sf.Tag.Get("secure_key"); name != "" {
			if kf := v.FieldByName(name); kf.IsValid() && kf.Kind() == reflect.String {
				keyID = kf.String()
			}
		}

		plain, err := k.decryptB64(f.String(), keyID)
		if err != nil {
			return fmt.Errorf("%s: %w", sf.Name, err)
		}
		f.SetString(plain)
	}
	return nil
}

// Package adaptive provides AEAD ciphers for sealing the local session
// record.
//
// Supported Algorithms:
//
//   - AES-256-GCM: preferred when hardware AES support is available
//   - ChaCha20-Poly1305: fallback for other architectures
//
// Keys are derived from a user passphrase with argon2id (DeriveKey) and a
// random per-installation salt (NewSalt).
//
// Usage:
//
//	salt, _ := adaptive.NewSalt()
//	c, err := adaptive.New(adaptive.DeriveKey(passphrase, salt))
//	sealed, err := c.Encrypt(record, []byte("dogpay-auth"))
//	record, err := c.Decrypt(sealed, []byte("dogpay-auth"))
package adaptive

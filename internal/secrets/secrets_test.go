package secrets

import "testing"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	codec := NewCodec("", "test-secret-key")

	tests := []string{
		"sk-test-123456",
		"a",
		"多字节密钥材料测试",
	}
	for _, plaintext := range tests {
		encrypted, err := codec.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%q) error: %v", plaintext, err)
		}
		decrypted, err := codec.Decrypt(encrypted)
		if err != nil {
			t.Fatalf("Decrypt() error: %v", err)
		}
		if decrypted != plaintext {
			t.Errorf("round trip = %q, want %q", decrypted, plaintext)
		}
	}
}

func TestEncryptNonDeterministic(t *testing.T) {
	codec := NewCodec("", "test-secret-key")
	a, err := codec.Encrypt("sk-test-123456")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	b, err := codec.Encrypt("sk-test-123456")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if a == b {
		t.Errorf("two encryptions of the same plaintext produced identical ciphertext (nonce reuse)")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "abc", "***"},
		{"exactly six", "abcdef", "******"},
		{"long", "sk-test-123456", "sk-********456"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskSecret(tt.in); got != tt.want {
				t.Errorf("MaskSecret(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

package config

import (
	"os"
	"testing"
)

func TestSecretKey_EncryptDecrypt(t *testing.T) {
	os.Setenv("HASHRELAY_SECRET_KEY", "test-secret-key-for-unit-tests")
	defer os.Unsetenv("HASHRELAY_SECRET_KEY")

	sk, err := NewSecretKey()
	if err != nil {
		t.Fatalf("NewSecretKey: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"password", "hunter2-coordinator-password"},
		{"empty", ""},
		{"long", "a-very-long-coordinator-password-that-an-operator-might-configure-1234567890"},
		{"special_chars", "p+/=!@#$%^&*()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := sk.Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}

			if tt.plaintext == "" {
				if encrypted != "" {
					t.Fatal("expected empty encrypted for empty plaintext")
				}
				return
			}

			if encrypted[:4] != "enc:" {
				t.Fatalf("expected enc: prefix, got %s", encrypted[:4])
			}
			if encrypted == tt.plaintext {
				t.Fatal("encrypted should differ from plaintext")
			}

			decrypted, err := sk.Decrypt(encrypted)
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if decrypted != tt.plaintext {
				t.Fatalf("expected %q, got %q", tt.plaintext, decrypted)
			}
		})
	}
}

func TestSecretKey_DecryptPlaintext(t *testing.T) {
	os.Setenv("HASHRELAY_SECRET_KEY", "test-key")
	defer os.Unsetenv("HASHRELAY_SECRET_KEY")

	sk, err := NewSecretKey()
	if err != nil {
		t.Fatalf("NewSecretKey: %v", err)
	}

	result, err := sk.Decrypt("plain-text-value")
	if err != nil {
		t.Fatalf("Decrypt plain: %v", err)
	}
	if result != "plain-text-value" {
		t.Fatalf("expected plain-text-value, got %s", result)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"ab", "****"},
		{"abcd", "****"},
		{"hunter2pass", "****pass"},
		{"a-long-coordinator-password", "****word"},
	}

	for _, tt := range tests {
		result := MaskSecret(tt.input)
		if result != tt.expected {
			t.Errorf("MaskSecret(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

package secrets

import (
	"sync"
	"testing"
)

func TestGenerate(t *testing.T) {
	secret, err := Generate()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(secret.Plaintext) != SecretLength*2 { // hex encoding doubles the length
		t.Errorf("Expected plaintext length %d, got %d", SecretLength*2, len(secret.Plaintext))
	}

	if secret.KeyPrefix != secret.Plaintext[:KeyPrefixLength] {
		t.Error("Key prefix should match the start of the plaintext")
	}

	if secret.Fingerprint != Fingerprint(secret.Plaintext) {
		t.Error("Fingerprint should be the digest of the plaintext")
	}

	if secret.Fingerprint == secret.Plaintext {
		t.Error("Fingerprint must not equal the plaintext")
	}
}

func TestGenerateSecretsAreDistinct(t *testing.T) {
	const n = 32

	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			secret, err := Generate()
			if err != nil {
				t.Errorf("Expected no error, got %v", err)
				return
			}
			mu.Lock()
			seen[secret.Plaintext] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("Expected %d distinct secrets, got %d", n, len(seen))
	}
}

func TestFingerprintIsDeterministic(t *testing.T) {
	if Fingerprint("some-secret") != Fingerprint("some-secret") {
		t.Error("Fingerprint should be deterministic")
	}
	if Fingerprint("some-secret") == Fingerprint("other-secret") {
		t.Error("Different secrets should have different fingerprints")
	}
}

func TestVerify(t *testing.T) {
	secret, err := Generate()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !Verify(secret.Hash, secret.Plaintext) {
		t.Error("Expected the generated plaintext to verify against its hash")
	}

	if Verify(secret.Hash, "wrongsecret") {
		t.Error("Expected a wrong plaintext to fail verification")
	}
}

package pinhash

import "testing"

func TestHashIsDeterministic(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("unexpected error generating salt: %v", err)
	}
	if Hash("1234", salt) != Hash("1234", salt) {
		t.Fatalf("expected identical digests for the same pin and salt")
	}
}

func TestHashDependsOnSalt(t *testing.T) {
	saltA, err := GenerateSalt()
	if err != nil {
		t.Fatalf("unexpected error generating salt: %v", err)
	}
	saltB, err := GenerateSalt()
	if err != nil {
		t.Fatalf("unexpected error generating salt: %v", err)
	}
	if saltA == saltB {
		t.Fatalf("expected two generated salts to differ")
	}
	if Hash("1234", saltA) == Hash("1234", saltB) {
		t.Fatalf("expected different digests for different salts")
	}
}

func TestVerify(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("unexpected error generating salt: %v", err)
	}
	digest := Hash("4321", salt)

	tests := []struct {
		name string
		pin  string
		want bool
	}{
		{name: "correct pin verifies", pin: "4321", want: true},
		{name: "wrong pin fails", pin: "4322", want: false},
		{name: "empty pin fails", pin: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verify(tt.pin, salt, digest); got != tt.want {
				t.Fatalf("expected verify=%t, got %t", tt.want, got)
			}
		})
	}
}

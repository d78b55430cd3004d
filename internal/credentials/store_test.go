package credentials

import (
	"errors"
	"testing"

	"github.com/mfenwick/receipts2ofx/internal/common"
)

func TestStaticPassword(t *testing.T) {
	got, err := Static("hunter2").Password(Service, "imap.example.com")
	if err != nil {
		t.Fatalf("Password failed: %v", err)
	}
	if got != "hunter2" {
		t.Errorf("password = %q, want hunter2", got)
	}

	if _, err := Static("").Password(Service, "imap.example.com"); !errors.Is(err, common.ErrConfig) {
		t.Errorf("empty static password error = %v, want config error", err)
	}
}

func TestForConfig(t *testing.T) {
	if _, ok := ForConfig("hunter2").(Static); !ok {
		t.Error("env-resolved password should use the static store")
	}
	if _, ok := ForConfig("").(Keyring); !ok {
		t.Error("missing env password should fall back to the keyring")
	}
}

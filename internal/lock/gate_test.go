package lock

import (
	"errors"
	"testing"

	logx "clubkiosk/pkg/logx"
)

type memSecret struct {
	v   string
	err error
}

func (m *memSecret) Secret() (string, bool) { return m.v, m.v != "" }
func (m *memSecret) PutSecret(v string) error {
	if m.err != nil {
		return m.err
	}
	m.v = v
	return nil
}
func (m *memSecret) DeleteSecret() error {
	if m.err != nil {
		return m.err
	}
	m.v = ""
	return nil
}

func TestObfuscateIsBase64(t *testing.T) {
	t.Parallel()

	if got := Obfuscate("1234"); got != "MTIzNA==" {
		t.Fatalf("Obfuscate = %q", got)
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	store := &memSecret{}
	g := New(store, logx.Nop())
	if g.IsSet() || g.Verify("") {
		t.Fatalf("unset gate must not verify")
	}
	if err := g.SetPassword("1234"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if !g.IsSet() || !g.Verify("1234") || g.Verify("12345") {
		t.Fatalf("Verify mismatch, stored %q", store.v)
	}
	if err := g.SetPassword(""); err != nil || g.IsSet() {
		t.Fatalf("empty SetPassword should remove, err=%v", err)
	}
}

func TestConfirmToggle(t *testing.T) {
	t.Parallel()

	g := New(&memSecret{v: Obfuscate("pw")}, logx.Nop())
	g.Request(ActionToggle)

	a, err := g.Confirm("nope")
	if !errors.Is(err, ErrMismatch) || a != ActionToggle {
		t.Fatalf("Confirm(wrong) = %v, %v", a, err)
	}
	if g.Pending() != ActionToggle {
		t.Fatalf("mismatch must keep the pending action")
	}
	a, err = g.Confirm("pw")
	if err != nil || a != ActionToggle {
		t.Fatalf("Confirm = %v, %v", a, err)
	}
	if g.Pending() != ActionNone {
		t.Fatalf("pending not cleared")
	}
}

func TestConfirmChangePassword(t *testing.T) {
	t.Parallel()

	store := &memSecret{v: Obfuscate("old")}
	g := New(store, logx.Nop())
	g.Stage("new")
	if g.Pending() != ActionChangePassword || !g.HasStaged() {
		t.Fatalf("Stage should set change-password pending")
	}
	if _, err := g.Confirm("new"); !errors.Is(err, ErrMismatch) {
		t.Fatalf("staged value must be verified against the old secret, err=%v", err)
	}
	if a, err := g.Confirm("old"); err != nil || a != ActionChangePassword {
		t.Fatalf("Confirm = %v, %v", a, err)
	}
	if !g.Verify("new") || g.HasStaged() {
		t.Fatalf("new secret not committed")
	}
}

func TestConfirmRemove(t *testing.T) {
	t.Parallel()

	g := New(&memSecret{v: Obfuscate("pw")}, logx.Nop())
	g.Request(ActionRemove)
	if a, err := g.Confirm("pw"); err != nil || a != ActionRemove {
		t.Fatalf("Confirm = %v, %v", a, err)
	}
	if g.IsSet() {
		t.Fatalf("password should be removed")
	}
}

func TestCancelDiscardsStaged(t *testing.T) {
	t.Parallel()

	store := &memSecret{v: Obfuscate("old")}
	g := New(store, logx.Nop())
	g.Stage("new")
	g.Cancel()
	if g.Pending() != ActionNone || g.HasStaged() {
		t.Fatalf("Cancel left state behind")
	}
	if !g.Verify("old") {
		t.Fatalf("Cancel must not touch the secret")
	}
}

func TestStoreErrorsWrap(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	g := New(&memSecret{err: boom}, logx.Nop())
	if err := g.SetPassword("x"); !errors.Is(err, boom) {
		t.Fatalf("SetPassword err = %v", err)
	}
}

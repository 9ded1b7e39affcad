package sharing

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestGenerateIdentityKeypairPublicMatchesPublicFromSecret(t *testing.T) {
	secret, public, err := GenerateIdentityKeypair()
	if err != nil {
		t.Fatalf("GenerateIdentityKeypair: %v", err)
	}
	recomputed, err := PublicFromSecret(secret)
	if err != nil {
		t.Fatalf("PublicFromSecret: %v", err)
	}
	if !bytes.Equal(public, recomputed) {
		t.Fatal("PublicFromSecret must recompute the same public key")
	}
}

func TestWrapUnwrapDEKForMemberRoundTrip(t *testing.T) {
	ownerSecret, ownerPublic, err := GenerateIdentityKeypair()
	if err != nil {
		t.Fatalf("GenerateIdentityKeypair (owner): %v", err)
	}
	memberSecret, memberPublic, err := GenerateIdentityKeypair()
	if err != nil {
		t.Fatalf("GenerateIdentityKeypair (member): %v", err)
	}

	dek := make([]byte, 32)
	if _, err := rand.Read(dek); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	// Owner wraps the vault's DEK for the member using dh(owner_secret,
	// member_public).
	wrapped, err := WrapDEKForMember(ownerSecret, memberPublic, dek, MemberWrapInfo)
	if err != nil {
		t.Fatalf("WrapDEKForMember: %v", err)
	}

	// Member unwraps using dh(member_secret, owner_public) — the
	// canonical single direction, computed from the opposite side.
	got, err := UnwrapDEKForMember(memberSecret, ownerPublic, wrapped, MemberWrapInfo)
	if err != nil {
		t.Fatalf("UnwrapDEKForMember: %v", err)
	}
	if !bytes.Equal(got, dek) {
		t.Fatal("round-tripped dek mismatch")
	}
}

func TestUnwrapDEKForMemberWrongInfoFails(t *testing.T) {
	ownerSecret, ownerPublic, err := GenerateIdentityKeypair()
	if err != nil {
		t.Fatalf("GenerateIdentityKeypair (owner): %v", err)
	}
	memberSecret, memberPublic, err := GenerateIdentityKeypair()
	if err != nil {
		t.Fatalf("GenerateIdentityKeypair (member): %v", err)
	}
	dek := make([]byte, 32)
	if _, err := rand.Read(dek); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	wrapped, err := WrapDEKForMember(ownerSecret, memberPublic, dek, MemberWrapInfo)
	if err != nil {
		t.Fatalf("WrapDEKForMember: %v", err)
	}
	if _, err := UnwrapDEKForMember(memberSecret, ownerPublic, wrapped, ItemWrapInfo); err == nil {
		t.Fatal("expected failure unwrapping with a mismatched purpose info string")
	}
}

func TestUnwrapDEKForMemberWrongPeerFails(t *testing.T) {
	ownerSecret, _, err := GenerateIdentityKeypair()
	if err != nil {
		t.Fatalf("GenerateIdentityKeypair (owner): %v", err)
	}
	memberSecret, memberPublic, err := GenerateIdentityKeypair()
	if err != nil {
		t.Fatalf("GenerateIdentityKeypair (member): %v", err)
	}
	intruderSecret, _, err := GenerateIdentityKeypair()
	if err != nil {
		t.Fatalf("GenerateIdentityKeypair (intruder): %v", err)
	}
	dek := make([]byte, 32)
	if _, err := rand.Read(dek); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	wrapped, err := WrapDEKForMember(ownerSecret, memberPublic, dek, MemberWrapInfo)
	if err != nil {
		t.Fatalf("WrapDEKForMember: %v", err)
	}

	// The intruder doesn't hold the member's secret key, so its dh
	// output never matches what the owner wrapped under.
	_, ownerPublicWrong, err := GenerateIdentityKeypair()
	if err != nil {
		t.Fatalf("GenerateIdentityKeypair: %v", err)
	}
	if _, err := UnwrapDEKForMember(intruderSecret, ownerPublicWrong, wrapped, MemberWrapInfo); err == nil {
		t.Fatal("expected failure unwrapping as an unrelated party")
	}
}

func TestGenerateIdentityKeypairIsNotDeterministic(t *testing.T) {
	s1, p1, err := GenerateIdentityKeypair()
	if err != nil {
		t.Fatalf("GenerateIdentityKeypair: %v", err)
	}
	s2, p2, err := GenerateIdentityKeypair()
	if err != nil {
		t.Fatalf("GenerateIdentityKeypair: %v", err)
	}
	if bytes.Equal(s1, s2) || bytes.Equal(p1, p2) {
		t.Fatal("two independently generated keypairs must not collide")
	}
}

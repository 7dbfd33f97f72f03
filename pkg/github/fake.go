package github

import (
	"context"
)

type fakeVerifier struct{}

// FakeVerifier is used when no upstream repository is configured.
func FakeVerifier() Verifier {
	return &fakeVerifier{}
}

func (v *fakeVerifier) Verify(ctx context.Context, username string) (bool, error) {
	return false, ErrGitHubNotEnabled
}

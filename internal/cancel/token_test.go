package cancel

import (
	"context"
	"testing"
)

// TestNeverToken verifies the default token never cancels.
func TestNeverToken(t *testing.T) {
	if Never().Cancelled() {
		t.Fatal("never token reported cancelled")
	}
	var zero Token
	if zero.Cancelled() {
		t.Fatal("zero token reported cancelled")
	}
}

// TestFlagToken verifies flag state flows through its tokens.
func TestFlagToken(t *testing.T) {
	flag := NewFlag()
	token := flag.Token()
	if token.Cancelled() {
		t.Fatal("fresh flag reported cancelled")
	}

	flag.Cancel()
	if !token.Cancelled() {
		t.Fatal("token did not observe flag cancellation")
	}

	// Cancel is idempotent.
	flag.Cancel()
	if !flag.Cancelled() {
		t.Fatal("flag lost cancelled state")
	}
}

// TestFromContext verifies context cancellation maps onto the token.
func TestFromContext(t *testing.T) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	token := FromContext(ctx)
	if token.Cancelled() {
		t.Fatal("live context reported cancelled")
	}

	cancelCtx()
	if !token.Cancelled() {
		t.Fatal("cancelled context not observed")
	}
}

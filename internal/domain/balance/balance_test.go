package balance

import "testing"

func TestNew(t *testing.T) {
	b, err := New("p1", 10, 1700)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.PrincipalID() != "p1" || b.Credits() != 10 {
		t.Errorf("got %s/%d, want p1/10", b.PrincipalID(), b.Credits())
	}
	if b.CreatedAt() != 1700 || b.UpdatedAt() != 1700 {
		t.Errorf("timestamps = %d/%d, want 1700/1700", b.CreatedAt(), b.UpdatedAt())
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New("", 1, 0); err == nil {
		t.Error("expected error for empty principal id")
	}
	if _, err := New("p1", -1, 0); err == nil {
		t.Error("expected error for negative credits")
	}
}

func TestCanCover(t *testing.T) {
	tests := []struct {
		credits, amount int64
		want            bool
	}{
		{credits: 1, amount: 1, want: true},
		{credits: 5, amount: 2, want: true},
		{credits: 0, amount: 1, want: false},
		{credits: -1, amount: 1, want: false},
		{credits: 3, amount: 0, want: false},
	}
	for _, tc := range tests {
		b := Reconstruct("p", tc.credits, 0, 0)
		if got := b.CanCover(tc.amount); got != tc.want {
			t.Errorf("CanCover(credits=%d, amount=%d) = %v, want %v", tc.credits, tc.amount, got, tc.want)
		}
	}
}

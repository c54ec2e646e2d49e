package db

import (
	"context"
	"testing"
)

func TestNewPool_RejectsBadSizes(t *testing.T) {
	tests := []struct {
		name     string
		max, min int32
	}{
		{"zero max", 0, 0},
		{"negative min", 10, -1},
		{"min above max", 2, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPool(context.Background(), "postgres://localhost/booking", tt.max, tt.min); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewPool_BadURL(t *testing.T) {
	if _, err := NewPool(context.Background(), "postgres://%zz", 4, 1); err == nil {
		t.Error("expected parse error")
	}
}

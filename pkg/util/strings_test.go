package util

import (
	"reflect"
	"testing"
)

func TestSplitNonEmpty(t *testing.T) {
	got := SplitNonEmpty(" k1:9092, ,k2:9092,")
	want := []string{"k1:9092", "k2:9092"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if out := SplitNonEmpty(""); out != nil {
		t.Fatalf("expected nil, got %v", out)
	}
}

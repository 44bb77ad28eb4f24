package checksum

import "testing"

func TestSum(t *testing.T) {
	// SHA-256 of the empty input.
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s, want %s", got, empty)
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("different inputs produced the same digest")
	}
}

func TestJSON_StableForMaps(t *testing.T) {
	a, err := JSON(map[string]int{"x": 1, "y": 2})
	if err != nil {
		t.Fatal(err)
	}
	b, err := JSON(map[string]int{"y": 2, "x": 1})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("map digests differ: %s vs %s", a, b)
	}
}

func TestJSON_MarshalError(t *testing.T) {
	if _, err := JSON(make(chan int)); err == nil {
		t.Error("expected error for unmarshalable value")
	}
}

package record

import (
	"bytes"
	"testing"
)

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		size int
		want Kind
	}{
		{0, KindEmpty},
		{1, KindTiny},
		{7, KindTiny},
		{8, KindSmall},
		{9, KindBlob},
		{4096, KindBlob},
	}
	for _, c := range cases {
		if got := Classify(c.size); got != c.want {
			t.Errorf("Classify(%d) = %v, want %v", c.size, got, c.want)
		}
	}
}

func TestEncodeDecodeInlineRoundTrip(t *testing.T) {
	for _, data := range [][]byte{
		{},
		{1},
		{1, 2, 3, 4, 5, 6, 7},
		{1, 2, 3, 4, 5, 6, 7, 8},
	} {
		flags, rid := EncodeInline(data)
		got := DecodeInline(flags, rid)
		if !bytes.Equal(got, data) && !(len(data) == 0 && len(got) == 0) {
			t.Errorf("round trip mismatch for %v: got %v", data, got)
		}
	}
}

func TestKindOfMatchesEncodedFlags(t *testing.T) {
	flagsEmpty, _ := EncodeInline(nil)
	if KindOf(flagsEmpty) != KindEmpty {
		t.Errorf("expected KindEmpty")
	}
	flagsTiny, _ := EncodeInline([]byte("abc"))
	if KindOf(flagsTiny) != KindTiny {
		t.Errorf("expected KindTiny")
	}
	flagsSmall, _ := EncodeInline([]byte("12345678"))
	if KindOf(flagsSmall) != KindSmall {
		t.Errorf("expected KindSmall")
	}
	// A slot with none of the inline bits set is a blob record.
	if KindOf(0) != KindBlob {
		t.Errorf("expected KindBlob for zero flags")
	}
}

func TestBlobRidRoundTrip(t *testing.T) {
	rid := EncodeBlobRid(123456789)
	if got := DecodeBlobRid(rid); got != 123456789 {
		t.Errorf("blob rid round trip: got %d", got)
	}
}

func TestDefaultComparatorIsMemcmp(t *testing.T) {
	c := Default()
	if c.Compare([]byte("a"), []byte("b")) >= 0 {
		t.Errorf("expected a < b")
	}
	if c.Compare([]byte("b"), []byte("a")) <= 0 {
		t.Errorf("expected b > a")
	}
	if c.Compare([]byte("a"), []byte("a")) != 0 {
		t.Errorf("expected a == a")
	}
}

func TestPrefixComparatorDefersOnTryFull(t *testing.T) {
	calledFull := false
	c := Comparator{
		Full: func(a, b []byte) int {
			calledFull = true
			return bytes.Compare(a, b)
		},
		Prefix: func(a, b []byte) int {
			if len(a) > 0 && len(b) > 0 && a[0] != b[0] {
				if a[0] < b[0] {
					return -1
				}
				return 1
			}
			return TryFull
		},
	}

	if got := c.Compare([]byte("apple"), []byte("banana")); got >= 0 {
		t.Errorf("expected apple < banana, got %d", got)
	}
	if calledFull {
		t.Errorf("prefix comparator should have decided apple vs banana without the full comparator")
	}

	calledFull = false
	if got := c.Compare([]byte("apple"), []byte("apricot")); got >= 0 {
		t.Errorf("expected apple < apricot, got %d", got)
	}
	if !calledFull {
		t.Errorf("expected TryFull deferral to reach the full comparator")
	}
}

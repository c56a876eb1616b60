package markbits

import "testing"

func TestBits(t *testing.T) {
	t.Run("DefaultsFalse", func(t *testing.T) {
		b := New(8)
		for i := 0; i < b.Len(); i++ {
			if b.Get(i) {
				t.Errorf("location %d expected false by default", i)
			}
		}
	})

	t.Run("SetAndGet", func(t *testing.T) {
		b := New(4)
		b.Set(2, true)

		for i := 0; i < b.Len(); i++ {
			want := i == 2
			if b.Get(i) != want {
				t.Errorf("location %d = %v, want %v", i, b.Get(i), want)
			}
		}
	})

	t.Run("SetAll", func(t *testing.T) {
		b := New(5)
		b.SetAll(true)

		for i := 0; i < b.Len(); i++ {
			if !b.Get(i) {
				t.Errorf("location %d expected true after SetAll(true)", i)
			}
		}

		b.SetAll(false)

		for i := 0; i < b.Len(); i++ {
			if b.Get(i) {
				t.Errorf("location %d expected false after SetAll(false)", i)
			}
		}
	})
}

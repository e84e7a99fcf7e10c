package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBase_Unprovision(t *testing.T) {
	testCases := []struct {
		name          string
		attached      int
		forced        bool
		expectOK      bool
		expectDestroy bool
	}{
		{name: "idle session", attached: 0, forced: false, expectOK: true, expectDestroy: true},
		{name: "busy session refuses", attached: 2, forced: false, expectOK: false, expectDestroy: false},
		{name: "busy session forced defers", attached: 1, forced: true, expectOK: true, expectDestroy: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			destroyed := 0
			base := NewBase("s1", func(name string) {
				assert.Equal(t, "s1", name)
				destroyed++
			})
			for i := 0; i < tc.attached; i++ {
				assert.True(t, base.Attach())
			}
			assert.Equal(t, tc.expectOK, base.Unprovision(tc.forced))
			assert.Equal(t, tc.expectDestroy, base.Destroyed())
			for i := 0; i < tc.attached; i++ {
				base.Detach()
			}
			if tc.expectOK {
				assert.Equal(t, 1, destroyed)
				assert.True(t, base.Destroyed())
				assert.False(t, base.Attach())
			} else {
				assert.Equal(t, 0, destroyed)
			}
		})
	}
}

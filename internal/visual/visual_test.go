// v0
// internal/visual/visual_test.go
package visual

import (
	"testing"

	"nrgchamp/ventilation/internal/models"
)

func TestBaseColor(t *testing.T) {
	cases := map[string]string{
		"green":         "green",
		"orange-low":    "orange",
		"yellow-high":   "yellow",
		"dark-red":      "dark",
		"dark_red":      "dark",
		"dark-red-high": "dark",
		"":              "unknown",
		"-low":          "unknown",
	}
	for in, want := range cases {
		if got := BaseColor(in); got != want {
			t.Fatalf("BaseColor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFromPacketDefaultsMissingLeaves(t *testing.T) {
	p := &models.StatusPacket{
		Timestamp:     "ts",
		PressureEntry: &models.StatusEntry{Level: "orange-low"},
	}
	c := FromPacket(p)
	if c.Pressure != "orange" || c.CO != "green" || c.PM25 != "green" || c.Timestamp != "ts" {
		t.Fatalf("colors = %+v", c)
	}
}

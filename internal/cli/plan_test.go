package cli

import (
	"io"
	"testing"

	"github.com/roverlab/traverse/pkg/terrain"
)

func TestParseCoord(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    terrain.Coord
		wantErr bool
	}{
		{"Simple", "3,4", terrain.Coord{Row: 3, Col: 4}, false},
		{"Zero", "0,0", terrain.Coord{}, false},
		{"Spaces", " 12 , 7 ", terrain.Coord{Row: 12, Col: 7}, false},
		{"Negative", "-1,2", terrain.Coord{Row: -1, Col: 2}, false},
		{"MissingCol", "3", terrain.Coord{}, true},
		{"TooManyParts", "1,2,3", terrain.Coord{}, true},
		{"NotANumber", "a,b", terrain.Coord{}, true},
		{"Empty", "", terrain.Coord{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCoord(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCoord(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseCoord(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRootCommandSubcommands(t *testing.T) {
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()

	want := map[string]bool{
		"plan": false, "records": false, "analyze": false,
		"serve": false, "cache": false, "completion": false,
	}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

package board

import (
	"testing"
)

func TestParseSimpleEngine(t *testing.T) {
	input := `
	engine test {
		base = 0x1000;
	}
	`

	parser, err := NewParser()
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	f, err := parser.ParseString("", input)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if len(f.Engines) != 1 {
		t.Fatalf("Expected 1 engine, got %d", len(f.Engines))
	}
	e := f.Engines[0]
	if e.Name != "test" {
		t.Errorf("Expected engine name 'test', got '%s'", e.Name)
	}
	props := e.Properties()
	if len(props) != 1 || props[0].Key != "base" {
		t.Fatalf("Unexpected properties: %+v", props)
	}
	if props[0].Value.Hex == nil || *props[0].Value.Hex != "0x1000" {
		t.Errorf("Expected hex value 0x1000, got %q", props[0].Value.String())
	}
}

func TestParseChannelsAndValues(t *testing.T) {
	input := `
	# leading comment
	engine soc {
		event-tokens = 512;   # trailing comment
		channel 0 { offset = 0x100; timeout = none; }
		channel 1 { offset = 0x180; timeout = 1500us; priority = 2; }
	}
	`

	parser, err := NewParser()
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	f, err := parser.ParseString("", input)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	e := f.Engines[0]
	chans := e.Channels()
	if len(chans) != 2 {
		t.Fatalf("Expected 2 channels, got %d", len(chans))
	}
	if chans[1].Index != 1 {
		t.Errorf("Expected index 1, got %d", chans[1].Index)
	}
	if len(chans[1].Props) != 3 {
		t.Fatalf("Expected 3 channel properties, got %d", len(chans[1].Props))
	}

	tests := []struct {
		prop *Property
		want string
	}{
		{e.Properties()[0], "512"},
		{chans[0].Props[1], "none"},
		{chans[1].Props[1], "1500us"},
	}
	for _, tt := range tests {
		if got := tt.prop.Value.String(); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.prop.Key, got, tt.want)
		}
	}
	if chans[1].Props[1].Value.Duration == nil {
		t.Errorf("1500us not lexed as a duration")
	}
	if chans[0].Props[1].Value.Ident == nil {
		t.Errorf("none not lexed as an identifier")
	}
}

func TestParseMultipleEngines(t *testing.T) {
	parser, err := NewParser()
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	f, err := parser.ParseFile("../../testdata/mt6779.gce")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if len(f.Engines) != 2 {
		t.Fatalf("Expected 2 engines, got %d", len(f.Engines))
	}
	if f.Engines[1].Name != "gce1" {
		t.Errorf("Expected second engine 'gce1', got '%s'", f.Engines[1].Name)
	}
}

func TestParseSyntaxError(t *testing.T) {
	parser, err := NewParser()
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	inputs := []string{
		`engine x { base = 0x10 }`,
		`engine x { channel { offset = 0x100; } }`,
		`engine { }`,
		`engine x { base 0x10; }`,
	}
	for _, in := range inputs {
		if _, err := parser.ParseString("", in); err == nil {
			t.Errorf("Expected parse error for %q", in)
		}
	}
}

package page

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		page    string
		rows    string
		number  int
		perPage int
		offset  int
		wantErr bool
	}{
		{name: "defaults", number: 1, perPage: DefaultRows, offset: 0},
		{name: "explicit", page: "3", rows: "20", number: 3, perPage: 20, offset: 40},
		{name: "max rows", page: "1", rows: "100", number: 1, perPage: 100, offset: 0},
		{name: "zero page", page: "0", wantErr: true},
		{name: "negative rows", rows: "-1", wantErr: true},
		{name: "too many rows", rows: "101", wantErr: true},
		{name: "not a number", page: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pg, err := Parse(tt.page, tt.rows)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q, %q) expected error", tt.page, tt.rows)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q, %q) error: %v", tt.page, tt.rows, err)
			}
			if pg.Number() != tt.number || pg.RowsPerPage() != tt.perPage || pg.Offset() != tt.offset {
				t.Errorf("got %s offset %d, want page %d rows %d offset %d", pg, pg.Offset(), tt.number, tt.perPage, tt.offset)
			}
		})
	}
}

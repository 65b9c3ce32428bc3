package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStreet(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "123 North Main Street, Suite #200", want: "123 N MAIN ST STE # 200"},
		{in: "  45  w. oak   ave.  ", want: "45 W OAK AVE"},
		{in: "9 SOUTHWEST PARKWAY APARTMENT 3-B", want: "9 SW PKWY APT 3-B"},
		{in: "1 O'HARE PLAZA", want: "1 OHARE PLZ"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStreet(tt.in))
		})
	}
}

func TestNormalizeCompany(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Acme Holdings, L.L.C.", want: "ACME HOLDINGS LLC"},
		{in: "ACME HOLDINGS L L C", want: "ACME HOLDINGS LLC"},
		{in: "The Widget Company, Incorporated", want: "WIDGET CO INC"},
		{in: "SMITH & SONS CORPORATION", want: "SMITH AND SONS CORP"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCompany(tt.in))
		})
	}
}

func TestNormalizeNameLabel(t *testing.T) {
	assert.Equal(t, "SMITH, JOHN A", NormalizeNameLabel(" SMITH, JOHN A. "))
	assert.Equal(t, "ACME LLC", NormalizeNameLabel("ACME L.L.C. SAME"))
	assert.Equal(t, "SAMEDAY INC", NormalizeNameLabel("SAMEDAY INC"))
}

func TestApplyChain(t *testing.T) {
	assert.Equal(t, "A B", ApplyChain("  a   b ", "uppercase", "collapse_whitespace"))
	assert.Equal(t, "x", Apply("x", "missing"))

	fn, ok := Get("nstreet")
	assert.True(t, ok)
	assert.Equal(t, "1 MAIN ST", fn("1 main street"))
}

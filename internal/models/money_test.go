package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"12.34", "12.34", false},
		{"12,34", "12.34", false},
		{" 30 ", "30", false},
		{"12.", "12", false},
		{".5", "0.5", false},
		{"12.345", "12.35", false},
		{"12.344", "12.34", false},
		{"0.004", "", true},
		{"0", "", true},
		{"", "", true},
		{"-5", "", true},
		{"+5", "", true},
		{"1e3", "", true},
		{"1.2.3", "", true},
		{"abc", "", true},
		{".", "", true},
		{"NaN", "", true},
		{"1000000000000", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				if err != ErrInvalidAmount {
					t.Errorf("ParseAmount(%q) error = %v, want ErrInvalidAmount", tt.in, err)
				}
				return
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestCentsRoundTrip(t *testing.T) {
	for _, s := range []string{"0.01", "9.00", "15", "1234.56"} {
		d := decimal.RequireFromString(s)
		if got := FromCents(Cents(d)); !got.Equal(d) {
			t.Errorf("FromCents(Cents(%s)) = %s", s, got)
		}
	}
	if got := Cents(decimal.RequireFromString("9")); got != 900 {
		t.Errorf("Cents(9) = %d, want 900", got)
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories {
		got, err := ParseCategory(string(c))
		if err != nil || got != c {
			t.Errorf("ParseCategory(%q) = %q, %v", c, got, err)
		}
	}

	if got, err := ParseCategory(""); err != nil || got != CategoryNone {
		t.Errorf("ParseCategory(\"\") = %q, %v; want No category", got, err)
	}

	for _, bad := range []string{"groceries", "Food", "Restaurants"} {
		if _, err := ParseCategory(bad); err != ErrInvalidCategory {
			t.Errorf("ParseCategory(%q) error = %v, want ErrInvalidCategory", bad, err)
		}
	}
}

func TestMembershipState(t *testing.T) {
	invited := &Membership{HasPendingInvitation: true, IsAdministrator: true}
	if invited.State() != MembershipInvited {
		t.Errorf("State() = %s, want invited", invited.State())
	}
	if invited.IsAcceptedAdmin() {
		t.Error("pending invitation must not grant admin rights")
	}

	accepted := &Membership{HasAcceptedInvitation: true, IsAdministrator: true}
	if accepted.State() != MembershipAccepted {
		t.Errorf("State() = %s, want accepted", accepted.State())
	}
	if !accepted.IsAcceptedAdmin() {
		t.Error("accepted admin should have admin rights")
	}
}

func TestAttachmentValidate(t *testing.T) {
	ok := &Attachment{Filename: "receipt.png", Content: "aGVsbG8="}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if err := (&Attachment{Filename: "", Content: "aGVsbG8="}).Validate(); err != ErrInvalidAttachment {
		t.Errorf("empty filename: got %v", err)
	}
	if err := (&Attachment{Filename: "x", Content: "not base64!"}).Validate(); err != ErrInvalidAttachment {
		t.Errorf("bad content: got %v", err)
	}
}

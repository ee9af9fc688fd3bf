package models

import "testing"

func TestRecipientIDDeterministic(t *testing.T) {
	a := RecipientID("msg-1", "p-42", ChannelEmail)
	b := RecipientID("msg-1", "p-42", ChannelEmail)

	if a != b {
		t.Fatalf("expected identical ids for the same tuple, got %s and %s", a, b)
	}
}

func TestRecipientIDVariesPerTuple(t *testing.T) {
	base := RecipientID("msg-1", "p-42", ChannelEmail)

	if got := RecipientID("msg-1", "p-42", ChannelSMS); got == base {
		t.Fatalf("expected a different id for a different channel")
	}
	if got := RecipientID("msg-1", "p-43", ChannelEmail); got == base {
		t.Fatalf("expected a different id for a different personnel id")
	}
	if got := RecipientID("msg-2", "p-42", ChannelEmail); got == base {
		t.Fatalf("expected a different id for a different message")
	}
}

func TestParseChannel(t *testing.T) {
	cases := []struct {
		input   string
		want    Channel
		wantErr bool
	}{
		{input: "email", want: ChannelEmail},
		{input: " SMS ", want: ChannelSMS},
		{input: "fax", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseChannel(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q, got %q", tc.input, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}

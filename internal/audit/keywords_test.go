package audit

import "testing"

func TestFlagSuspiciousKeywords(t *testing.T) {
	t.Run("substring match in merchant", func(t *testing.T) {
		rows := []Record{{"merchant": "Downtown Cashier Services"}}
		findings := FlagSuspiciousKeywords(rows, nil)
		if len(findings) != 1 {
			t.Fatalf("expected 1 finding, got %d", len(findings))
		}
		if findings[0].Details != "cash (in merchant)" {
			t.Errorf("details = %q, want %q", findings[0].Details, "cash (in merchant)")
		}
	})

	t.Run("one finding per record with all hits listed", func(t *testing.T) {
		rows := []Record{{
			"merchant": "Casino Royale",
			"category": "Gifts",
			"employee": "Jordan Blake",
		}}
		findings := FlagSuspiciousKeywords(rows, nil)
		if len(findings) != 1 {
			t.Fatalf("expected 1 finding, got %d", len(findings))
		}
		want := "casino (in merchant), gift (in category)"
		if findings[0].Details != want {
			t.Errorf("details = %q, want %q", findings[0].Details, want)
		}
		if findings[0].Reason != ReasonSuspiciousKeyword {
			t.Errorf("reason = %q, want %q", findings[0].Reason, ReasonSuspiciousKeyword)
		}
	})

	t.Run("case insensitive via normalization", func(t *testing.T) {
		rows := []Record{{"category": "PERSONAL"}}
		if findings := FlagSuspiciousKeywords(rows, nil); len(findings) != 1 {
			t.Fatalf("expected 1 finding, got %d", len(findings))
		}
	})

	t.Run("clean records pass", func(t *testing.T) {
		rows := []Record{
			{"merchant": "Office Depot", "category": "Supplies", "employee": "Kim Lee"},
			{},
		}
		if findings := FlagSuspiciousKeywords(rows, nil); len(findings) != 0 {
			t.Errorf("expected no findings, got %v", findings)
		}
	})

	t.Run("custom columns restrict the scan", func(t *testing.T) {
		rows := []Record{{"merchant": "Casino Royale", "notes": "client party"}}
		findings := FlagSuspiciousKeywords(rows, []string{"notes"})
		if len(findings) != 1 {
			t.Fatalf("expected 1 finding, got %d", len(findings))
		}
		if findings[0].Details != "party (in notes)" {
			t.Errorf("details = %q, want %q", findings[0].Details, "party (in notes)")
		}
	})
}

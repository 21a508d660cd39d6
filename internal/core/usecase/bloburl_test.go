package usecase

import (
	"testing"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

func TestBlobNameFromURL(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
	}{
		{name: "local marker", url: "file:///var/data/email-attachments/tenant-1/acord125.pdf", want: "tenant-1/acord125.pdf"},
		{name: "local marker case insensitive", url: "FILE:///var/data/Email-Attachments/a/b.pdf", want: "a/b.pdf"},
		{name: "local windows separators", url: `file://C:\storage\email-attachments\x\y\loss run.pdf`, want: "x/y/loss run.pdf"},
		{name: "local without marker", url: "file:///tmp/uploads/sov.xlsx", want: "sov.xlsx"},
		{name: "plain path", url: "/data/email-attachments/x.pdf", want: "x.pdf"},
		{name: "plain path without marker", url: "uploads/sov.xlsx", want: "sov.xlsx"},
		{name: "drive letter", url: `C:\storage\email-attachments\t\acord.pdf`, want: "t/acord.pdf"},
		{name: "drive letter forward slashes", url: "d:/archive/loss.pdf", want: "loss.pdf"},
		{name: "remote azure", url: "https://acct.blob.core.windows.net/email-attachments/tenant/email/acord.pdf", want: "tenant/email/acord.pdf"},
		{name: "remote escaped", url: "https://acct.blob.core.windows.net/email-attachments/a/loss%20run.pdf", want: "a/loss run.pdf"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BlobNameFromURL(tc.url)
			if err != nil {
				t.Fatalf("BlobNameFromURL() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestBlobNameFromURLRejectsUnusableInput(t *testing.T) {
	for _, raw := range []string{"", "https://acct.blob.core.windows.net/email-attachments", "https://host/"} {
		if _, err := BlobNameFromURL(raw); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %q, got %v", raw, err)
		}
	}
}

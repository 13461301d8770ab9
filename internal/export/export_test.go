package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		filename     string
		kind         Kind
		conversation string
	}{
		{"Jane Doe - Text - 2024-03-01T10_11_12Z.html", KindText, "Jane Doe"},
		{"+15550001111 - Placed - 2024-01-02T03_04_05Z.html", KindCall, "+15550001111"},
		{"+15550001111 - Received - 2024-01-02T03_04_05Z.html", KindCall, "+15550001111"},
		{"+15550001111 - Missed - 2024-01-02T03_04_05Z.html", KindCall, "+15550001111"},
		{"Jane Doe - Voicemail - 2024-05-06T07_08_09Z.html", KindVoicemail, "Jane Doe"},
		{"orphan.html", KindUnknown, "orphan"},
		{"A - B - C.html", KindUnknown, "A"},
	}
	for _, tc := range cases {
		kind, conversation := Classify(tc.filename)
		if kind != tc.kind || conversation != tc.conversation {
			t.Errorf("Classify(%q) = (%s, %q), want (%s, %q)", tc.filename, kind, conversation, tc.kind, tc.conversation)
		}
	}
}

func TestDiscoverDocumentsSorted(t *testing.T) {
	root := t.TempDir()
	names := []string{
		"Calls/Jane Doe - Text - 2024-03-01T10_11_12Z.html",
		"Calls/Bob - Voicemail - 2024-02-01T00_00_00Z.html",
		"Calls/skipme.jpg",
	}
	for _, rel := range names {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("<html></html>"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := DiscoverDocuments(root)
	if err != nil {
		t.Fatalf("DiscoverDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %+v", docs)
	}
	if docs[0].Conversation != "Bob" || docs[0].Kind != KindVoicemail {
		t.Fatalf("docs[0] = %+v", docs[0])
	}
	if docs[1].Conversation != "Jane Doe" || docs[1].Kind != KindText {
		t.Fatalf("docs[1] = %+v", docs[1])
	}
}

func TestExtractReferences(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "conv.html")
	body := `<html><body>
<img src="photo.jpg"/>
<img src="Calls/IMG_0001.png"/>
<a href="clip.mp4">clip</a>
<a href="https://example.com/remote.jpg">remote</a>
<a href="#timestamp">anchor</a>
<link href="style.css"/>
<img src="photo.jpg"/>
</body></html>`
	if err := os.WriteFile(doc, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	refs, err := ExtractReferences(doc)
	if err != nil {
		t.Fatalf("ExtractReferences: %v", err)
	}
	want := []string{"IMG_0001.png", "clip.mp4", "photo.jpg"}
	if len(refs) != len(want) {
		t.Fatalf("refs = %v, want %v", refs, want)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Fatalf("refs = %v, want %v", refs, want)
		}
	}
}

func TestLinkTargetRelativeToDocumentDir(t *testing.T) {
	cases := []struct {
		doc, resolved, want string
	}{
		{"index.html", "Calls/photo.jpg", "attachments/Calls/photo.jpg"},
		{"Calls/Jane Doe - Text - 2024.html", "Calls/photo.jpg", "../attachments/Calls/photo.jpg"},
		{"Calls/deep/doc.html", "x.png", "../../attachments/x.png"},
	}
	for _, tc := range cases {
		if got := LinkTarget(tc.doc, tc.resolved); got != tc.want {
			t.Errorf("LinkTarget(%q, %q) = %q, want %q", tc.doc, tc.resolved, got, tc.want)
		}
	}
}

func TestRenderDocumentRewritesResolvedLinks(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "Jane Doe - Text - 2024.html")
	body := `<img src="photo.jpg"/><a href="missing.mp4">m</a><a href="https://example.com/x.jpg">r</a>`
	if err := os.WriteFile(src, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "archive", "Jane Doe - Text - 2024.html")
	links := map[string]string{"photo.jpg": "attachments/Calls/photo.jpg"}
	doc := Document{Path: src, RelPath: "Jane Doe - Text - 2024.html", Kind: KindText, Conversation: "Jane Doe"}
	if err := RenderDocument(doc, links, out); err != nil {
		t.Fatalf("RenderDocument: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	content := string(got)
	if !strings.Contains(content, `src="attachments/Calls/photo.jpg"`) {
		t.Fatalf("resolved link not rewritten: %s", content)
	}
	if !strings.Contains(content, `href="missing.mp4"`) {
		t.Fatalf("unresolved link must stay untouched: %s", content)
	}
	if !strings.Contains(content, `https://example.com/x.jpg`) {
		t.Fatalf("web link must stay untouched: %s", content)
	}
}

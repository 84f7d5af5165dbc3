package richtext

import "testing"

func TestPlainTextParagraphs(t *testing.T) {
	got := PlainText("<p>Recipe:</p><p>18g in · 36g out</p>")
	if got != "Recipe: 18g in · 36g out" {
		t.Fatalf("unexpected plain text: %q", got)
	}
}

func TestPlainTextTaskList(t *testing.T) {
	in := `<ul data-type="taskList"><li data-type="taskItem" data-checked="false"><label><input type="checkbox" /><span></span></label><div><p>Milk</p></div></li><li data-type="taskItem" data-checked="true"><label><input type="checkbox" checked="checked" /><span></span></label><div><p>Olive oil</p></div></li></ul>`
	if got := PlainText(in); got != "Milk Olive oil" {
		t.Fatalf("unexpected plain text: %q", got)
	}
}

func TestPlainTextSkipsScripts(t *testing.T) {
	if got := PlainText("<p>hi</p><script>alert(1)</script>"); got != "hi" {
		t.Fatalf("unexpected plain text: %q", got)
	}
}

func TestSearchTextLowercasesTitleAndBody(t *testing.T) {
	got := SearchText("Espresso Journal", "<p>Blackberry, <b>Cocoa</b></p>")
	if got != "espresso journal blackberry, cocoa" {
		t.Fatalf("unexpected search text: %q", got)
	}
	if SearchText("", "") != "" {
		t.Fatalf("expected empty search text")
	}
}

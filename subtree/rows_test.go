package subtree_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/luhaoyun888/go-subscribe-cn"
	"github.com/luhaoyun888/go-subscribe-cn/subtree"
)

// recordingView 记录收到的变更通知。
type recordingView struct {
	events []string
}

func (v *recordingView) RowsInserted(start, count int) {
	v.events = append(v.events, fmt.Sprintf("insert %v %v", start, count))
}

func (v *recordingView) RowsRemoved(start, count int) {
	v.events = append(v.events, fmt.Sprintf("remove %v %v", start, count))
}

func (v *recordingView) RowInvalidated(row int) {
	v.events = append(v.events, fmt.Sprintf("invalidate %v", row))
}

func TestRows_scenario(t *testing.T) {
	view := &recordingView{}
	tree := populate(t, &subtree.Options{View: view}, "comp.lang", "comp.lang.c", "comp", "comp.os")
	if err := tree.EndPopulation(); err != nil {
		t.Fatalf("EndPopulation() = %v", err)
	}
	rows := tree.Rows()

	want := []string{"comp", "comp.lang", "comp.lang.c", "comp.os"}
	if got := rows.Paths(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Paths() = %v, want %v", got, want)
	}
	if rows.RowCount() != 4 {
		t.Errorf("RowCount() = %v, want 4", rows.RowCount())
	}
	if want := []string{"insert 0 4"}; !reflect.DeepEqual(view.events, want) {
		t.Errorf("events = %v, want %v", view.events, want)
	}

	c := rows.Find("comp.lang.c")
	if c != 2 {
		t.Fatalf("Find(comp.lang.c) = %v, want 2", c)
	}
	if level := rows.LevelOf(c); level != 2 {
		t.Errorf("LevelOf() = %v, want 2", level)
	}
	if parent := rows.ParentIndexOf(c); parent != rows.Find("comp.lang") {
		t.Errorf("ParentIndexOf() = %v, want %v", parent, rows.Find("comp.lang"))
	}
	if parent := rows.ParentIndexOf(0); parent != -1 {
		t.Errorf("ParentIndexOf(0) = %v, want -1", parent)
	}

	top, err := tree.ChildPaths("")
	if err != nil {
		t.Fatalf("ChildPaths() = %v", err)
	}
	if want := []string{"comp"}; !reflect.DeepEqual(top, want) {
		t.Errorf("ChildPaths(\"\") = %v, want %v", top, want)
	}

	// 折叠 comp 一次性移除 3 行
	view.events = nil
	delta, err := rows.Toggle(0)
	if err != nil {
		t.Fatalf("Toggle() = %v", err)
	}
	if delta != -3 || rows.RowCount() != 1 {
		t.Errorf("Toggle() = %v, RowCount() = %v, want -3, 1", delta, rows.RowCount())
	}
	if want := []string{"remove 1 3", "invalidate 0"}; !reflect.DeepEqual(view.events, want) {
		t.Errorf("events = %v, want %v", view.events, want)
	}

	// 再次展开按相同顺序插回 3 行
	view.events = nil
	delta, err = rows.Toggle(0)
	if err != nil {
		t.Fatalf("Toggle() = %v", err)
	}
	if delta != 3 {
		t.Errorf("Toggle() = %v, want 3", delta)
	}
	if got := rows.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
	if want := []string{"insert 1 3", "invalidate 0"}; !reflect.DeepEqual(view.events, want) {
		t.Errorf("events = %v, want %v", view.events, want)
	}
}

func TestRows_toggleNested(t *testing.T) {
	tree := populate(t, nil, "comp.lang", "comp.lang.c", "comp.lang.go", "comp.os", "misc")
	tree.EndPopulation()
	rows := tree.Rows()

	lang := rows.Find("comp.lang")
	delta, err := rows.Toggle(lang)
	if err != nil {
		t.Fatalf("Toggle() = %v", err)
	}
	if delta != -2 {
		t.Errorf("Toggle(comp.lang) = %v, want -2", delta)
	}
	want := []string{"comp", "comp.lang", "comp.os", "misc"}
	if got := rows.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}

	// 折叠 comp 后再展开，comp.lang 保持折叠
	rows.Toggle(0)
	rows.Toggle(0)
	if got := rows.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
	if rows.IsContainerOpen(1) {
		t.Errorf("IsContainerOpen(comp.lang) = true, want false")
	}
}

func TestRows_topLevelSeeding(t *testing.T) {
	tree := populate(t, nil, "b.x", "a", "c")
	tree.EndPopulation()
	rows := tree.Rows()

	want := []string{"a", "b", "b.x", "c"}
	if got := rows.Paths(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Paths() = %v, want %v", got, want)
	}
	for row, tc := range []struct{ container, open bool }{
		{false, false},
		{true, true},
		{false, true},
		{false, false},
	} {
		if got := rows.IsContainer(row); got != tc.container {
			t.Errorf("IsContainer(%v) = %v, want %v", row, got, tc.container)
		}
		if got := rows.IsContainerOpen(row); got != tc.open {
			t.Errorf("IsContainerOpen(%v) = %v, want %v", row, got, tc.open)
		}
	}

	// 存储顺序中的前一个兄弟即显示顺序中的下一个兄弟
	for row, want := range []bool{true, true, false, false} {
		if got := rows.HasPrecedingSibling(row); got != want {
			t.Errorf("HasPrecedingSibling(%v) = %v, want %v", row, got, want)
		}
	}
}

func TestRows_beforePopulation(t *testing.T) {
	tree := populate(t, nil, "a", "b")
	if n := tree.Rows().RowCount(); n != 0 {
		t.Errorf("RowCount() before EndPopulation = %v, want 0", n)
	}

	empty := subtree.New(nil)
	if err := empty.EndPopulation(); err != nil {
		t.Fatalf("EndPopulation() = %v", err)
	}
	if n := empty.Rows().RowCount(); n != 0 {
		t.Errorf("RowCount() = %v, want 0", n)
	}
}

func TestRows_toggleOutOfRange(t *testing.T) {
	tree := populate(t, nil, "a")
	tree.EndPopulation()
	for _, row := range []int{-1, 1} {
		if _, err := tree.Rows().Toggle(row); !errors.Is(err, subscribe.ErrInvalidArgument) {
			t.Errorf("Toggle(%v) = %v, want ErrInvalidArgument", row, err)
		}
	}
}

func TestRows_cells(t *testing.T) {
	tree := subtree.New(&subtree.Options{
		Delimiter:  '/',
		ServerType: subscribe.ServerTypeIMAP,
		Decoder:    &fakeDecoder{},
	})
	tree.BeginPopulation()
	tree.AddDiscoveredItem("INBOX", true, true, false)
	tree.AddDiscoveredItem("Shared", false, false, false)
	tree.EndPopulation()
	rows := tree.Rows()

	text, err := rows.CellText(0, subscribe.ColumnName)
	if err != nil || text != "<INBOX>" {
		t.Errorf("CellText(0, name) = %q, %v, want %q", text, err, "<INBOX>")
	}
	if text, _ := rows.CellText(0, subscribe.ColumnSubscribed); text != "" {
		t.Errorf("CellText(0, subscribed) = %q, want empty", text)
	}
	if value, _ := rows.CellValue(0, subscribe.ColumnName); value != "INBOX" {
		t.Errorf("CellValue(0, name) = %q, want %q", value, "INBOX")
	}
	if value, _ := rows.CellValue(0, subscribe.ColumnSubscribed); value != "true" {
		t.Errorf("CellValue(0, subscribed) = %q, want %q", value, "true")
	}
	if value, _ := rows.CellValue(1, subscribe.ColumnSubscribed); value != "false" {
		t.Errorf("CellValue(1, subscribed) = %q, want %q", value, "false")
	}
	if _, err := rows.CellValue(0, subscribe.Column(42)); !errors.Is(err, subscribe.ErrInvalidArgument) {
		t.Errorf("CellValue(0, 42) = %v, want ErrInvalidArgument", err)
	}

	want := []subscribe.Property{subscribe.PropSubscribableTrue, subscribe.PropSubscribedTrue, "serverType-imap"}
	if got := rows.CellProperties(0, subscribe.ColumnName); !reflect.DeepEqual(got, want) {
		t.Errorf("CellProperties(0, name) = %v, want %v", got, want)
	}
	want = []subscribe.Property{subscribe.PropSubscribableFalse, subscribe.PropSubscribedFalse}
	if got := rows.CellProperties(1, subscribe.ColumnSubscribed); !reflect.DeepEqual(got, want) {
		t.Errorf("CellProperties(1, subscribed) = %v, want %v", got, want)
	}
}

func TestRows_reset(t *testing.T) {
	view := &recordingView{}
	tree := populate(t, &subtree.Options{View: view}, "a", "b")
	tree.EndPopulation()
	tree.Reset()
	if want := []string{"insert 0 2", "remove 0 2"}; !reflect.DeepEqual(view.events, want) {
		t.Errorf("events = %v, want %v", view.events, want)
	}
}

func TestRows_toggleDuringSecondSession(t *testing.T) {
	view := &recordingView{}
	tree := populate(t, &subtree.Options{View: view}, "a", "a.x", "c")
	if err := tree.EndPopulation(); err != nil {
		t.Fatalf("EndPopulation() = %v", err)
	}
	rows := tree.Rows()

	// b 插入到 a 和 c 之间，但在会话结束前不会出现在行列表中
	tree.BeginPopulation()
	if err := tree.AddDiscoveredItem("b", false, true, false); err != nil {
		t.Fatalf("AddDiscoveredItem() = %v", err)
	}
	if want := []string{"a", "a.x", "c"}; !reflect.DeepEqual(rows.Paths(), want) {
		t.Fatalf("Paths() = %v, want %v", rows.Paths(), want)
	}

	view.events = nil
	delta, err := rows.Toggle(0)
	if err != nil {
		t.Fatalf("Toggle() = %v", err)
	}
	if delta != -1 {
		t.Errorf("Toggle() = %v, want -1", delta)
	}
	if want := []string{"a", "c"}; !reflect.DeepEqual(rows.Paths(), want) {
		t.Errorf("Paths() = %v, want %v", rows.Paths(), want)
	}
	if want := []string{"remove 1 1", "invalidate 0"}; !reflect.DeepEqual(view.events, want) {
		t.Errorf("events = %v, want %v", view.events, want)
	}

	if err := tree.EndPopulation(); err != nil {
		t.Fatalf("EndPopulation() = %v", err)
	}
	if want := []string{"a", "a.x", "b", "c"}; !reflect.DeepEqual(rows.Paths(), want) {
		t.Errorf("Paths() after second session = %v, want %v", rows.Paths(), want)
	}
}

package complaint

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complaintsync/internal/notion"
	"complaintsync/internal/timestamp"
)

var kst = time.FixedZone("KST", 9*60*60)

func ptr[T any](v T) *T { return &v }

func testMapper(t *testing.T) *Mapper {
	t.Helper()
	s, err := DefaultSchema()
	require.NoError(t, err)
	clock := func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return NewMapper(s, timestamp.New(kst, nil, timestamp.WithClock(clock)))
}

func text(s string) notion.PropertyValue {
	return notion.PropertyValue{Type: notion.TypeRichText, RichText: []notion.RichText{{PlainText: s}}}
}

func selected(s string) notion.PropertyValue {
	return notion.PropertyValue{Type: notion.TypeSelect, Select: &notion.Option{Name: s}}
}

func samplePage() notion.Page {
	return notion.Page{
		ID:             "5f0c",
		CreatedTime:    "2025-05-12T02:37:00.000Z",
		LastEditedTime: "2025-05-12T06:05:00.000Z",
		Properties: notion.Properties{
			"ID-2":   {Type: notion.TypeUniqueID, UniqueID: &notion.UniqueID{Prefix: ptr("CALL"), Number: ptr(int64(1234))}},
			"신고자연락처": text("010-1234-5678"),
			"차량번호":   text("부산12가3456"),
			"컨테이너번호": text("ABCD1234567"),
			"서비스명":   selected("반출입예약"),
			"터미널":    {Type: notion.TypeMultiSelect, MultiSelect: []notion.Option{{Name: "A"}, {Name: "B"}}},
			"처리상태":   {Type: notion.TypeStatus, Status: &notion.Option{Name: "처리중"}},
			"접수자":    selected("김접수"),
			"처리자":    {Type: notion.TypeSelect},
			"민원유형":   selected("시스템"),
			"상세민원유형": {Type: notion.TypeMultiSelect, MultiSelect: []notion.Option{}},
			"민원제목":   text("예약 오류"),
			"민원내용": {Type: notion.TypeRichText, RichText: []notion.RichText{
				{PlainText: "예약이 되지 않습니다"}, {PlainText: " (첨부 참조)"},
			}},
			"민원처리": text("확인 중"),
		},
	}
}

func sampleRow() map[string]string {
	return map[string]string{
		"ID-2":   "CALL-77",
		"접수일시":   "2025년 5월 12일 오전 11:37",
		"최종편집일시": "2025년 5월 12일 오후 3:05",
		"신고자연락처": "010-9999-0000",
		"차량번호":   "",
		"서비스명":   "반출입예약",
		"터미널":    "A, B",
		"처리상태":   "완료",
		"접수자":    "김접수",
		"처리자":    "이처리",
		"민원유형":   "시스템",
		"상세민원유형": "로그인",
		"민원내용":   "로그인 불가",
		"문의상세":   "비밀번호 재설정 후에도 로그인 불가",
		"처리내용":   "초기화 안내",
		"민원처리":   "완료 통보",
	}
}

// render prints a row one column per line, in table order.
func render(c Complaint) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s\n", ColumnID, c.ID)
	fmt.Fprintf(&b, "%s=%s\n", ColumnComplaintDate, c.ComplaintDate.Format(time.RFC3339))
	fmt.Fprintf(&b, "%s=%s\n", ColumnLastEditDate, c.LastEditDate.Format(time.RFC3339))
	for _, col := range Columns {
		fmt.Fprintf(&b, "%s=%s\n", col.Name, col.Get(&c))
	}
	return []byte(b.String())
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestMapper_FromPage(t *testing.T) {
	c := testMapper(t).FromPage(samplePage())
	golden(t).Assert(t, "page", render(c))
}

func TestMapper_FromRow(t *testing.T) {
	c := testMapper(t).FromRow(sampleRow())
	golden(t).Assert(t, "row", render(c))
}

func TestMapper_Deterministic(t *testing.T) {
	m := testMapper(t)
	assert.Equal(t, m.FromPage(samplePage()), m.FromPage(samplePage()))
	assert.Equal(t, m.FromRow(sampleRow()), m.FromRow(sampleRow()))
}

func TestMapper_MissingIDIsSentinel(t *testing.T) {
	p := samplePage()
	delete(p.Properties, "ID-2")

	c := testMapper(t).FromPage(p)
	assert.Equal(t, MissingID, c.ID)
	assert.True(t, c.Skippable())

	p.Properties["ID-2"] = notion.PropertyValue{Type: notion.TypeUniqueID, UniqueID: &notion.UniqueID{}}
	assert.Equal(t, MissingID, testMapper(t).FromPage(p).ID)
}

func TestMapper_TruncatesToColumnWidth(t *testing.T) {
	row := sampleRow()
	row["문의상세"] = strings.Repeat("가", 1500)
	row["신고자연락처"] = strings.Repeat("9", 25)

	c := testMapper(t).FromRow(row)
	assert.Equal(t, 1000, utf8.RuneCountInString(c.Content))
	assert.Equal(t, 20, len(c.TelNo))
}

func TestMapper_EmptyRowUsesDefaults(t *testing.T) {
	c := testMapper(t).FromRow(map[string]string{})
	assert.Empty(t, c.ID)
	assert.True(t, c.Skippable())
	assert.Empty(t, c.Title)
	assert.True(t, time.Date(2025, 6, 1, 9, 0, 0, 0, kst).Equal(c.ComplaintDate))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"ascii", "abcdef", 5, "abcde"},
		{"counts characters not bytes", "가나다라", 2, "가나"},
		{"repairs invalid utf8", "ab\xffcd", 3, "ab�"},
		{"zero", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.in, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestValues_MatchesColumnNames(t *testing.T) {
	c := testMapper(t).FromRow(sampleRow())
	names := ColumnNames()
	vals := c.Values()
	require.Len(t, vals, len(names))
	assert.Equal(t, "CALL-77", vals[0])
	assert.Equal(t, "완료 통보", vals[len(vals)-1])
}

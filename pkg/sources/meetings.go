package sources

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/uniscope/uniscope/pkg/crawl"
	"github.com/uniscope/uniscope/pkg/domain"
)

// WeeklyMeeting extracts the campus weekly meeting schedule from the
// internal OA system (ioa.whut.edu.cn). Unlike the other sources this
// one emits records straight from the schedule page, every table row
// or text block is a meeting. The page layout shifts between Seeyon
// releases, so parsing falls through table, list, JSON and free-text
// strategies in that order.
type WeeklyMeeting struct {
	base string
}

// meetingInfo is one meeting pulled out of the schedule page
type meetingInfo struct {
	Topic        string
	Time         string
	Location     string
	Organizer    string
	Participants string
	Week         string
}

var (
	reClockTime    = regexp.MustCompile(`^\d{1,2}[:：]\d{2}`)
	reMeetingWhen  = regexp.MustCompile(`(\d{1,2}月\d{1,2}日|\d{1,2}[:：]\d{2}|周[一二三四五六日]|星期[一二三四五六日天])`)
	reMeetingWhere = regexp.MustCompile(`(?:地点|地址)[：:]\s*([^\n\r]+)|在([^\n\r]*?(?:楼|室|厅|馆|中心)[^\n\r]*)`)
	reLocationLine = regexp.MustCompile(`地点[：:][^\n]+`)
	reClockAny     = regexp.MustCompile(`\d{1,2}[:：]\d{2}`)
	reSectionSplit = regexp.MustCompile(`\n\s*\n|\d+[、.]`)
	reTagToNL      = regexp.MustCompile(`<[^>]+>`)
	reMeetingDate  = regexp.MustCompile(`(\d{4})?年?(\d{1,2})月(\d{1,2})日`)
)

// NewWeeklyMeeting makes the weekly meeting source
func NewWeeklyMeeting(base string) *WeeklyMeeting {
	if base == "" {
		base = "https://ioa.whut.edu.cn/seeyon/ext/NewWeekMeeting.do?method=pubIndex"
	}
	return &WeeklyMeeting{base: base}
}

// Name implements crawl.Source
func (s *WeeklyMeeting) Name() string { return "weekly_meeting" }

// Seeds is the single schedule page
func (s *WeeklyMeeting) Seeds() []crawl.Request {
	return []crawl.Request{{URL: s.base, Kind: crawl.KindListing}}
}

// ParseListing mines the schedule page for meetings, no further pages
// are followed
func (s *WeeklyMeeting) ParseListing(p *crawl.Page) (next []crawl.Request, records []*domain.Record) {
	var meetings []meetingInfo

	if tables := p.Doc.Find("table"); tables.Length() > 0 {
		meetings = s.fromTables(tables)
	}
	if len(meetings) == 0 {
		if items := p.Doc.Find("div.meeting-item, div.schedule-item, li.meeting, div.item"); items.Length() > 0 {
			meetings = s.fromList(items)
		}
	}
	if len(meetings) == 0 {
		if trimmed := strings.TrimSpace(p.Body); strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			meetings = s.fromJSON(trimmed)
		}
	}
	if len(meetings) == 0 {
		meetings = s.fromText(p)
	}

	for _, m := range meetings {
		if rec := s.record(p, m); rec != nil {
			records = append(records, rec)
		}
	}
	return nil, records
}

// ParseArticle is never reached, the source schedules no article requests
func (s *WeeklyMeeting) ParseArticle(*crawl.Page) (*domain.Record, bool) {
	return nil, false
}

// fromTables maps header columns by keyword, then reads each data row
func (s *WeeklyMeeting) fromTables(tables *goquery.Selection) []meetingInfo {
	var meetings []meetingInfo

	tables.Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		colMap := make(map[string]int)
		rows.First().Find("th, td").Each(func(i int, cell *goquery.Selection) {
			header := strings.TrimSpace(cell.Text())
			switch {
			case containsAny(header, "时间", "日期"):
				colMap["time"] = i
			case containsAny(header, "地点", "地址", "会场"):
				colMap["location"] = i
			case containsAny(header, "内容", "议题", "主题", "会议名称"):
				colMap["topic"] = i
			case containsAny(header, "主办", "部门", "单位"):
				colMap["organizer"] = i
			case containsAny(header, "参加", "出席", "人员"):
				colMap["participants"] = i
			}
		})

		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() == 0 {
				return
			}
			m := s.fromRow(cells, colMap)
			if m.Topic != "" {
				meetings = append(meetings, m)
			}
		})
	})
	return meetings
}

// fromRow reads mapped columns, or guesses field roles from cell shape
// when the table has no recognizable header
func (s *WeeklyMeeting) fromRow(cells *goquery.Selection, colMap map[string]int) meetingInfo {
	var m meetingInfo

	if len(colMap) > 0 {
		get := func(key string) string {
			idx, ok := colMap[key]
			if !ok || idx >= cells.Length() {
				return ""
			}
			return strings.TrimSpace(cells.Eq(idx).Text())
		}
		m.Time = get("time")
		m.Location = get("location")
		m.Topic = get("topic")
		m.Organizer = get("organizer")
		m.Participants = get("participants")
		return m
	}

	cells.Each(func(_ int, cell *goquery.Selection) {
		text := strings.TrimSpace(cell.Text())
		if text == "" {
			return
		}
		switch {
		case reClockTime.MatchString(text) || strings.Contains(text, "时"):
			if m.Time == "" {
				m.Time = text
			}
		case containsAny(text, "楼", "室", "厅", "会议", "馆"):
			if m.Location == "" {
				m.Location = text
			}
		case len([]rune(text)) > 10 && m.Topic == "":
			m.Topic = text
		}
	})
	return m
}

func (s *WeeklyMeeting) fromList(items *goquery.Selection) []meetingInfo {
	var meetings []meetingInfo
	items.Each(func(_ int, item *goquery.Selection) {
		m := meetingInfo{
			Time:      strings.TrimSpace(item.Find(".time, .date, span.time").First().Text()),
			Location:  strings.TrimSpace(item.Find(".location, .place, span.location").First().Text()),
			Topic:     strings.TrimSpace(item.Find(".title, .topic, h3, h4, a").First().Text()),
			Organizer: strings.TrimSpace(item.Find(".organizer, .dept").First().Text()),
		}
		if m.Topic != "" {
			meetings = append(meetings, m)
		}
	})
	return meetings
}

// fromJSON handles the AJAX variant, meetings arrive as a bare array or
// under a data/items/meetings key
func (s *WeeklyMeeting) fromJSON(body string) []meetingInfo {
	var raw []map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal([]byte(body), &wrapper); err != nil {
			return nil
		}
		for _, key := range []string{"data", "items", "meetings"} {
			if inner, ok := wrapper[key]; ok {
				if json.Unmarshal(inner, &raw) == nil {
					break
				}
			}
		}
	}

	str := func(m map[string]any, keys ...string) string {
		for _, k := range keys {
			if v, ok := m[k].(string); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	var meetings []meetingInfo
	for _, entry := range raw {
		m := meetingInfo{
			Topic:        str(entry, "title", "topic", "subject"),
			Time:         str(entry, "time", "startTime", "meetingTime"),
			Location:     str(entry, "location", "place", "room"),
			Organizer:    str(entry, "organizer", "department", "host"),
			Participants: str(entry, "participants", "attendees"),
		}
		if m.Topic != "" {
			meetings = append(meetings, m)
		}
	}
	return meetings
}

// fromText mines unstructured content blocks, a section counts as a
// meeting when it carries a time or location cue
func (s *WeeklyMeeting) fromText(p *crawl.Page) []meetingInfo {
	week := strings.TrimSpace(p.Doc.Find("h1, h2, div.title").First().Text())

	var meetings []meetingInfo
	p.Doc.Find("div.content, div.main, div.body").Each(func(_ int, block *goquery.Selection) {
		blockHTML, err := goquery.OuterHtml(block)
		if err != nil {
			return
		}
		text := html.UnescapeString(reTagToNL.ReplaceAllString(blockHTML, "\n"))

		for _, section := range reSectionSplit.Split(text, -1) {
			section = strings.TrimSpace(section)
			if len([]rune(section)) < 10 {
				continue
			}

			var m meetingInfo
			m.Week = week
			m.Time = reMeetingWhen.FindString(section)
			if loc := reMeetingWhere.FindStringSubmatch(section); loc != nil {
				if loc[1] != "" {
					m.Location = strings.TrimSpace(loc[1])
				} else {
					m.Location = strings.TrimSpace(loc[2])
				}
			}

			if m.Time == "" && m.Location == "" {
				continue
			}
			topic := reLocationLine.ReplaceAllString(section, "")
			topic = strings.TrimSpace(reClockAny.ReplaceAllString(topic, ""))
			if r := []rune(topic); len(r) > 200 {
				topic = string(r[:200])
			}
			if len([]rune(topic)) > 5 {
				m.Topic = topic
				meetings = append(meetings, m)
			}
		}
	})
	return meetings
}

// record converts one meeting into a news record, the content is an
// assembled field listing so keyword matching sees location and
// organizer text too
func (s *WeeklyMeeting) record(p *crawl.Page, m meetingInfo) *domain.Record {
	if m.Topic == "" {
		return nil
	}

	title := m.Topic
	if m.Time != "" && !strings.Contains(m.Topic, m.Time) {
		title = fmt.Sprintf("[%s] %s", m.Time, m.Topic)
	}

	var parts []string
	if m.Week != "" {
		parts = append(parts, "周次: "+m.Week)
	}
	if m.Time != "" {
		parts = append(parts, "时间: "+m.Time)
	}
	if m.Location != "" {
		parts = append(parts, "地点: "+m.Location)
	}
	if m.Organizer != "" {
		parts = append(parts, "主办单位: "+m.Organizer)
	}
	if m.Participants != "" {
		parts = append(parts, "参加人员: "+m.Participants)
	}
	parts = append(parts, "\n会议内容: "+m.Topic)

	content := strings.Join(parts, "\n")

	rec := &domain.Record{
		Title:      CleanHTML(title),
		Content:    content,
		Summary:    Summarize(content),
		SourceURL:  p.URL.String(),
		SourceName: "武汉理工大学周会安排",
		Publisher:  m.Organizer,
		Department: m.Organizer,
		Category:   "会议安排",
		Tags:       []string{"会议", "周会", "日程"},
	}
	if t, ok := parseMeetingDate(m.Time); ok {
		rec.PublishedAt = &t
	}
	return rec
}

// parseMeetingDate handles schedule time strings like "12月22日" where
// the year is implied to be the current one
func parseMeetingDate(timeStr string) (time.Time, bool) {
	if timeStr == "" {
		return time.Time{}, false
	}
	if m := reMeetingDate.FindStringSubmatch(timeStr); m != nil {
		year := m[1]
		if year == "" {
			year = strconv.Itoa(time.Now().Year())
		}
		return makeDate(year, m[2], m[3])
	}
	return ParseDate(timeStr)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

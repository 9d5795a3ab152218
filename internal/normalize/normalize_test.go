package normalize_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/goccy/go-json"

	"marquee/internal/movie"
	"marquee/internal/normalize"
	"marquee/internal/services"
)

const kobisInfo = `{
  "movieCd": "20183782",
  "movieNm": "기생충",
  "movieNmEn": "Parasite",
  "prdtYear": "2019",
  "showTm": "131",
  "openDt": "20190530",
  "nations": [{"nationNm": "한국"}],
  "genres": [{"genreNm": "드라마"}],
  "directors": [{"peopleNm": "봉준호", "peopleNmEn": "BONG Joon-ho"}],
  "actors": [{"peopleNm": "송강호", "cast": "기택"}, {"peopleNm": "", "cast": "nobody"}],
  "audits": [{"auditNo": "2019-MF00794", "watchGradeNm": "15세 이상 관람가"}],
  "companys": [{"companyNm": "바른손이앤에이"}]
}`

const staffShape = `{
  "id": "20183782",
  "title": "기생충",
  "titleEn": "Parasite",
  "productionYear": 2019,
  "runtime": 131,
  "release_date": "2019.05.30",
  "nationAlt": "한국",
  "genres": ["드라마"],
  "staffs": [
    {"staffNm": "봉준호", "staffRoleNm": "감독"},
    {"staffNm": "송강호", "staffRoleNm": "배우", "part": "기택"},
    {"staffNm": "촬영감독 아님", "staffRoleNm": "촬영"}
  ],
  "watchGradeNm": "15세이상관람가",
  "companies": ["바른손이앤에이"]
}`

func expectedParasite() movie.Detail {
	return movie.Detail{
		ID:             "20183782",
		Title:          "기생충",
		TitleEn:        "Parasite",
		ReleaseDate:    "20190530",
		ReleaseYear:    "2019",
		ProductionYear: "2019",
		RuntimeMinutes: 131,
		Origin:         movie.OriginDomestic,
		Rating:         "15세이상관람가",
		Genres:         []string{"드라마"},
		Contributors: []movie.ContributorRef{
			{Name: "봉준호", Role: movie.RoleDirector},
			{Name: "송강호", Role: movie.RoleActor, Part: "기택"},
		},
		Companies: []string{"바른손이앤에이"},
	}
}

func canonical(t *testing.T, data string, hints normalize.Hints) normalize.Canonical {
	t.Helper()
	res, err := normalize.NormalizeJSON([]byte(data), hints)
	if err != nil {
		t.Fatalf("NormalizeJSON: %v", err)
	}
	c, ok := res.(normalize.Canonical)
	if !ok {
		t.Fatalf("expected canonical result, got %s", normalize.Describe(res))
	}
	return c
}

func TestShapeInvariance(t *testing.T) {
	want := expectedParasite()
	canonicalDoc, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal canonical: %v", err)
	}

	shapes := map[string]string{
		"kobis flat":        kobisInfo,
		"details envelope":  `{"source": "kobis", "details": ` + kobisInfo + `}`,
		"movieInfo wrapper": `{"movieInfo": ` + kobisInfo + `, "source": "kobis"}`,
		"staff variant":     staffShape,
		"canonical":         string(canonicalDoc),
	}
	for name, data := range shapes {
		t.Run(name, func(t *testing.T) {
			got := canonical(t, data, normalize.Hints{})
			if !reflect.DeepEqual(got.Detail, want) {
				t.Fatalf("detail mismatch\n got: %+v\nwant: %+v", got.Detail, want)
			}
		})
	}
}

func TestEnvelopeUnwrapsOneLevelOnly(t *testing.T) {
	res, err := normalize.NormalizeJSON([]byte(`{"details": {"details": {"movieCd": "1", "movieNm": "deep"}}}`), normalize.Hints{})
	if err != nil {
		t.Fatalf("NormalizeJSON: %v", err)
	}
	if _, ok := res.(normalize.InsufficientData); !ok {
		t.Fatalf("expected doubly wrapped record to be insufficient, got %s", normalize.Describe(res))
	}

	got := canonical(t, `{"details": {"movieCd": "1", "movieNm": "one"}}`, normalize.Hints{})
	if got.Shape != "envelope" || got.Detail.ID != "1" {
		t.Fatalf("expected envelope unwrap, got shape %q detail %+v", got.Shape, got.Detail)
	}
}

func TestInsufficientDataWhenNoIDOrTitle(t *testing.T) {
	res, err := normalize.NormalizeJSON([]byte(`{"openDt": "20200101", "genres": ["드라마"]}`), normalize.Hints{Year: "2020"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := res.(normalize.InsufficientData); !ok {
		t.Fatalf("expected insufficient data, got %s", normalize.Describe(res))
	}
	if _, ok := normalize.Normalize(nil, normalize.Hints{}).(normalize.InsufficientData); !ok {
		t.Fatal("expected nil record to be insufficient")
	}
}

func TestTitleOnlyRecordIsCanonicalButInvalid(t *testing.T) {
	got := canonical(t, `{"movieNm": "제목만"}`, normalize.Hints{})
	if got.Detail.Valid() {
		t.Fatalf("expected record without id to be invalid: %+v", got.Detail)
	}
	if got.Detail.ReleaseYear != movie.UnknownYear {
		t.Fatalf("expected unknown year, got %q", got.Detail.ReleaseYear)
	}
}

func TestHintsFillMissingIDAndYear(t *testing.T) {
	got := canonical(t, `{"movieNm": "힌트"}`, normalize.Hints{ID: "X1", Year: "2018"})
	if got.Detail.ID != "X1" || got.Detail.ReleaseYear != "2018" {
		t.Fatalf("hints not applied: %+v", got.Detail)
	}
	got = canonical(t, `{"movieCd": "X2", "movieNm": "날짜", "openDt": "20210101"}`, normalize.Hints{ID: "ignored", Year: "2018"})
	if got.Detail.ID != "X2" || got.Detail.ReleaseYear != "2021" {
		t.Fatalf("record values should win over hints: %+v", got.Detail)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"20190530", "20190530"},
		{"2019-05-30", "20190530"},
		{"2019.05.30 00:00:00", "20190530"},
		{"201905", ""},
		{"20191340", ""},
		{"", ""},
		{"unknown", ""},
	}
	for _, tt := range tests {
		if got := normalize.ParseDate(tt.in); got != tt.want {
			t.Errorf("ParseDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOriginClassPrecedence(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want movie.OriginClass
	}{
		{"explicit domestic code", `{"movieCd":"1","repNation":"k","nationAlt":"미국"}`, movie.OriginDomestic},
		{"explicit foreign code", `{"movieCd":"1","repNation":"F","nationAlt":"한국"}`, movie.OriginForeign},
		{"free text domestic", `{"movieCd":"1","nationAlt":"한국,미국"}`, movie.OriginDomestic},
		{"free text foreign", `{"movieCd":"1","repNationNm":"미국"}`, movie.OriginForeign},
		{"nation list first entry", `{"movieCd":"1","nations":[{"nationNm":"일본"},{"nationNm":"한국"}]}`, movie.OriginForeign},
		{"nothing", `{"movieCd":"1"}`, movie.OriginUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := canonical(t, tt.doc, normalize.Hints{})
			if got.Detail.Origin != tt.want {
				t.Fatalf("origin = %q, want %q", got.Detail.Origin, tt.want)
			}
		})
	}
}

func TestCanonicalRating(t *testing.T) {
	tests := map[string]string{
		"전체 관람가":      "전체관람가",
		"12세 이상 관람가":  "12세이상관람가",
		"15세이상관람가":    "15세이상관람가",
		"청소년관람불가":     "청소년 관람불가",
		" 청소년 관람불가 ":  "청소년 관람불가",
		"제한상영가":       "제한상영가",
		"":            "",
	}
	for in, want := range tests {
		if got := normalize.CanonicalRating(in); got != want {
			t.Errorf("CanonicalRating(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContributorShapes(t *testing.T) {
	got := canonical(t, `{
	  "movieCd": "1",
	  "movieNm": "credits",
	  "directors": ["감독A", {"peopleCd": "D1", "peopleNm": "감독B"}],
	  "casts": [{"castNm": "역할", "name": "배우C"}],
	  "actorsNm": "배우D，배우E, 배우D",
	  "directorNm": "감독A",
	  "actors": [{"peopleNm": "  ", "cast": "ghost"}]
	}`, normalize.Hints{})

	want := []movie.ContributorRef{
		{Name: "감독A", Role: movie.RoleDirector},
		{PersonID: "D1", Name: "감독B", Role: movie.RoleDirector},
		{Name: "배우C", Role: movie.RoleActor, Part: "역할"},
		{Name: "배우D", Role: movie.RoleActor},
		{Name: "배우E", Role: movie.RoleActor},
	}
	if !reflect.DeepEqual(got.Detail.Contributors, want) {
		t.Fatalf("contributors\n got: %+v\nwant: %+v", got.Detail.Contributors, want)
	}
}

func TestAudienceParsing(t *testing.T) {
	got := canonical(t, `{"movieCd": "1", "audiAcc": "10,085,275"}`, normalize.Hints{})
	if got.Detail.Audience == nil || *got.Detail.Audience != 10085275 {
		t.Fatalf("unexpected audience: %v", got.Detail.Audience)
	}
	got = canonical(t, `{"movieCd": "1", "audiAcc": 42}`, normalize.Hints{})
	if got.Detail.Audience == nil || *got.Detail.Audience != 42 {
		t.Fatalf("unexpected numeric audience: %v", got.Detail.Audience)
	}
	got = canonical(t, `{"movieCd": "1", "audiAcc": "n/a", "showTm": "abc"}`, normalize.Hints{})
	if got.Detail.Audience != nil || got.Detail.RuntimeMinutes != 0 {
		t.Fatalf("malformed optional fields should degrade to absent: %+v", got.Detail)
	}
}

func TestNormalizeJSONRejectsNonObjects(t *testing.T) {
	for _, data := range []string{`not json`, `[1,2]`, `null`} {
		_, err := normalize.NormalizeJSON([]byte(data), normalize.Hints{})
		if !errors.Is(err, services.ErrMalformedInput) {
			t.Fatalf("NormalizeJSON(%q) error = %v, want malformed input", data, err)
		}
	}
}

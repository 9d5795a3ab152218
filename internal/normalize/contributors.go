package normalize

import (
	"strings"

	"marquee/internal/movie"
	"marquee/internal/textutil"
)

var (
	contributorNameKeys = []string{"peopleNm", "name", "staffNm", "directorNm", "actorNm"}
	contributorIDKeys   = []string{"peopleCd", "staffCd", "personId"}
	contributorPartKeys = []string{"cast", "castNm", "part", "character"}
	roleTextKeys        = []string{"staffRoleNm", "repRoleNm", "role"}
)

// collector gathers contributor entries in credit order, dropping duplicates
// of the same person in the same role.
type collector struct {
	out  []movie.ContributorRef
	seen map[string]int
}

func (c *collector) add(ref movie.ContributorRef) {
	ref.Name = textutil.CollapseSpace(ref.Name)
	if ref.Name == "" {
		return
	}
	ref.PersonID = strings.TrimSpace(ref.PersonID)
	ref.Part = textutil.CollapseSpace(ref.Part)
	if ref.Role == movie.RoleDirector {
		ref.Part = ""
	}
	key := string(ref.Role) + "|" + personKey(ref)
	if idx, dup := c.seen[key]; dup {
		if c.out[idx].Part == "" {
			c.out[idx].Part = ref.Part
		}
		return
	}
	c.seen[key] = len(c.out)
	c.out = append(c.out, ref)
}

func personKey(ref movie.ContributorRef) string {
	if ref.PersonID != "" {
		return ref.PersonID
	}
	return "NM:" + textutil.NormalizeName(ref.Name)
}

// addEntry reads one credit entry, which may be an object or a bare name.
func (c *collector) addEntry(entry any, role movie.Role) {
	switch v := entry.(type) {
	case map[string]any:
		c.add(movie.ContributorRef{
			PersonID: firstString(v, contributorIDKeys...),
			Name:     firstString(v, contributorNameKeys...),
			Role:     role,
			Part:     firstString(v, contributorPartKeys...),
		})
	default:
		c.add(movie.ContributorRef{Name: scalarString(v), Role: role})
	}
}

// rolesFromText maps free role text to contributor roles. Text naming both
// yields both.
func rolesFromText(text string) []movie.Role {
	lower := strings.ToLower(text)
	var roles []movie.Role
	if strings.Contains(lower, "감독") || strings.Contains(lower, "director") {
		roles = append(roles, movie.RoleDirector)
	}
	if strings.Contains(lower, "배우") || strings.Contains(lower, "actor") {
		roles = append(roles, movie.RoleActor)
	}
	return roles
}

func contributors(obj map[string]any) []movie.ContributorRef {
	c := &collector{seen: map[string]int{}}

	for _, entry := range asList(obj["directors"]) {
		c.addEntry(entry, movie.RoleDirector)
	}
	for _, key := range []string{"actors", "casts"} {
		for _, entry := range asList(obj[key]) {
			c.addEntry(entry, movie.RoleActor)
		}
	}
	for _, key := range []string{"staffs", "contributors"} {
		for _, entry := range asList(obj[key]) {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			for _, role := range rolesFromText(firstString(m, roleTextKeys...)) {
				c.addEntry(m, role)
			}
		}
	}
	for _, name := range textutil.SplitNames(firstString(obj, "actorsNm")) {
		c.add(movie.ContributorRef{Name: name, Role: movie.RoleActor})
	}
	if name := firstString(obj, "directorNm"); name != "" {
		for _, n := range textutil.SplitNames(name) {
			c.add(movie.ContributorRef{Name: n, Role: movie.RoleDirector})
		}
	}

	if c.out == nil {
		return []movie.ContributorRef{}
	}
	return c.out
}

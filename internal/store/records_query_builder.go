package store

import "strings"

type recordQueryBuilder struct {
	filter RecordFilter
	query  string
	args   []any
	where  []string
}

func buildRecordListQuery(filter RecordFilter) (string, []any) {
	b := &recordQueryBuilder{filter: filter}
	b.query = "SELECT " + recordColumns + " FROM records"
	b.buildWhere()
	b.query += " ORDER BY created_at DESC, id DESC"
	b.buildPagination()
	return b.query, b.args
}

func (b *recordQueryBuilder) buildWhere() {
	if name := strings.TrimSpace(b.filter.NameContains); name != "" {
		b.where = append(b.where, "name LIKE '%' || ? || '%' ESCAPE '\\'")
		b.args = append(b.args, escapeLike(name))
	}
	if genre := strings.TrimSpace(b.filter.Genre); genre != "" {
		b.where = append(b.where, "genre = ?")
		b.args = append(b.args, genre)
	}
	if b.filter.Status != "" {
		b.where = append(b.where, "status = ?")
		b.args = append(b.args, string(b.filter.Status))
	}

	if len(b.where) == 0 {
		return
	}
	b.query += " WHERE " + strings.Join(b.where, " AND ")
}

func (b *recordQueryBuilder) buildPagination() {
	hasLimit := false
	if b.filter.Limit > 0 {
		b.query += " LIMIT ?"
		b.args = append(b.args, b.filter.Limit)
		hasLimit = true
	}
	if b.filter.Offset > 0 {
		if !hasLimit {
			b.query += " LIMIT -1"
		}
		b.query += " OFFSET ?"
		b.args = append(b.args, b.filter.Offset)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}

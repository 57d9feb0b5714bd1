package orm

import (
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/mesh-intelligence/narwhal/pkg/types"
)

// Column storage types.
const (
	sqlText      = "text"
	sqlInteger   = "integer"
	sqlReal      = "real"
	sqlTimestamp = "timestamp"
	sqlDate      = "date"
)

type fieldKind int

const (
	kindScalar fieldKind = iota
	kindCustom
	kindReference
	kindList
)

var (
	timeType           = reflect.TypeFor[time.Time]()
	referenceFieldType = reflect.TypeFor[referenceField]()
	listFieldType      = reflect.TypeFor[listField]()
)

// field is the metadata of one declared struct field.
type field struct {
	name    string
	column  string
	index   []int
	kind    fieldKind
	typ     reflect.Type
	sqlType string
	custom  *customType
	target  reflect.Type
	rel     *relation
}

// relation names a list field and the companion columns it adds to the
// child table.
type relation struct {
	ident       string
	owner       reflect.Type
	child       reflect.Type
	field       string
	column      string
	idColumn    string
	orderColumn string
}

// column is a synthesized table column.
type column struct {
	name    string
	sqlType string
	foreign string
}

// model is the registered schema of one entity type.
type model struct {
	typ        reflect.Type
	name       string
	table      string
	immutable  bool
	fields     []*field
	refs       []*field
	lists      []*field
	companions []*relation
	created    bool
}

// stored returns the fields that own a column on the model's table.
func (m *model) stored() []*field {
	out := make([]*field, 0, len(m.fields))
	for _, f := range m.fields {
		if f.kind != kindList {
			out = append(out, f)
		}
	}
	return out
}

// columns returns the non-key columns in declaration order followed by the
// companion columns of the lists the type is a child of.
func (m *model) columns() []column {
	var cols []column
	for _, f := range m.stored() {
		c := column{name: f.column, sqlType: f.sqlType}
		if f.kind == kindReference {
			c.foreign = tableNameOf(f.target)
		}
		cols = append(cols, c)
	}
	for _, r := range m.companions {
		cols = append(cols,
			column{name: r.idColumn, sqlType: sqlInteger},
			column{name: r.orderColumn, sqlType: sqlInteger})
	}
	return cols
}

// list returns the relation of the list field named by its Go field name
// or its column name.
func (m *model) list(name string) *relation {
	for _, f := range m.lists {
		if f.name == name || f.column == name {
			return f.rel
		}
	}
	return nil
}

func (m *model) fieldByColumn(col string) *field {
	for _, f := range m.fields {
		if f.kind != kindList && f.column == col {
			return f
		}
	}
	return nil
}

func (m *model) isCompanion(col string) bool {
	for _, r := range m.companions {
		if col == r.idColumn || col == r.orderColumn {
			return true
		}
	}
	return false
}

// tableNamer lets a type choose its table name.
type tableNamer interface {
	TableName() string
}

// tableNameOf returns the table name of an entity pointer type.
func tableNameOf(t reflect.Type) string {
	if t.Implements(reflect.TypeFor[tableNamer]()) {
		return reflect.New(t.Elem()).Interface().(tableNamer).TableName()
	}
	return strings.ToLower(t.Elem().Name()) + "_table"
}

// Register synthesizes the schema of each prototype's type. Registering a
// type twice is a no-op. Registration closes once tables are created.
func (s *Store) Register(protos ...Entity) error {
	if s.frozen {
		return types.ErrRegistryFrozen
	}
	for _, p := range protos {
		if isNilEntity(p) {
			panic(contractf("nil prototype"))
		}
		t := reflect.TypeOf(p)
		if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
			panic(contractf("%s is not a pointer to a struct", t))
		}
		if _, ok := s.models[t]; ok {
			continue
		}
		m := s.synthesize(t, p.IsImmutable())
		s.models[t] = m
		s.order = append(s.order, m)

		// Lists declared by types registered earlier.
		m.companions = append(m.companions, s.pending[t]...)
		delete(s.pending, t)

		s.log.Debug("registered type", "type", m.name, "table", m.table)
	}
	return nil
}

func (s *Store) synthesize(t reflect.Type, immutable bool) *model {
	m := &model{
		typ:       t,
		name:      t.Elem().Name(),
		table:     tableNameOf(t),
		immutable: immutable,
	}

	st := t.Elem()
	for i := range st.NumField() {
		sf := st.Field(i)
		if sf.Anonymous || !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("db")
		if tag == "-" {
			continue
		}
		f := &field{
			name:   sf.Name,
			column: tag,
			index:  sf.Index,
			typ:    sf.Type,
		}
		if f.column == "" {
			f.column = snakeCase(sf.Name)
		}
		if !s.classify(f, sf) {
			s.log.Warn("unmapped field skipped", "type", m.name, "field", sf.Name, "go_type", sf.Type.String())
			continue
		}

		m.fields = append(m.fields, f)
		switch f.kind {
		case kindReference:
			m.refs = append(m.refs, f)
		case kindList:
			f.rel = s.listRelation(m, f)
			m.lists = append(m.lists, f)
		}
	}
	return m
}

// classify sets the kind and storage type of f. It reports false when the
// field type has no mapping.
func (s *Store) classify(f *field, sf reflect.StructField) bool {
	pt := reflect.PointerTo(f.typ)
	switch {
	case pt.Implements(referenceFieldType):
		f.kind = kindReference
		f.sqlType = sqlInteger
		f.target = reflect.New(f.typ).Interface().(referenceField).targetType()
		return true
	case pt.Implements(listFieldType):
		f.kind = kindList
		f.target = reflect.New(f.typ).Interface().(listField).childType()
		return true
	}

	if ct, ok := s.types[f.typ]; ok {
		f.kind = kindCustom
		f.custom = ct
		f.sqlType = ct.sqlType
		return true
	}

	f.kind = kindScalar
	if f.typ == timeType {
		f.sqlType = sqlTimestamp
		if sf.Tag.Get("orm") == "date" {
			f.sqlType = sqlDate
		}
		return true
	}
	switch f.typ.Kind() {
	case reflect.String:
		f.sqlType = sqlText
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Bool:
		f.sqlType = sqlInteger
	case reflect.Float32, reflect.Float64:
		f.sqlType = sqlReal
	default:
		return false
	}
	return true
}

// listRelation names the companion columns of a list field and attaches
// them to the child model, or parks them until the child registers.
func (s *Store) listRelation(owner *model, f *field) *relation {
	ident := "_" + strings.ToLower(owner.name) + "_" + f.column + "_list"
	r := &relation{
		ident:       ident,
		owner:       owner.typ,
		child:       f.target,
		field:       f.name,
		column:      f.column,
		idColumn:    ident + "_id",
		orderColumn: ident + "_order",
	}
	if child, ok := s.models[f.target]; ok {
		child.companions = append(child.companions, r)
	} else if f.target == owner.typ {
		owner.companions = append(owner.companions, r)
	} else {
		s.pending[f.target] = append(s.pending[f.target], r)
	}
	return r
}

// CreateTables creates the table of every registered type, in registration
// order, and closes registration.
func (s *Store) CreateTables() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.frozen = true
	for _, m := range s.order {
		if err := s.createTable(m); err != nil {
			return err
		}
	}
	return nil
}

// CreateTable creates the table of proto's type, registering it first if
// needed, and closes registration.
func (s *Store) CreateTable(proto Entity) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if !s.frozen {
		if err := s.Register(proto); err != nil {
			return err
		}
	}
	m, err := s.modelFor(reflect.TypeOf(proto))
	if err != nil {
		return err
	}
	s.frozen = true
	return s.createTable(m)
}

func (s *Store) createTable(m *model) error {
	if m.created {
		return nil
	}
	cols := m.columns()
	if len(cols) == 0 {
		s.log.Warn("type without columns skipped", "type", m.name)
		return nil
	}
	if _, err := s.exec(opCreate, createTableSQL(m.table, cols)); err != nil {
		return fmt.Errorf("creating table %s: %w", m.table, err)
	}
	m.created = true
	return nil
}

func createTableSQL(table string, cols []column) string {
	defs := []string{PrimaryKey + " integer primary key autoincrement"}
	var fks []string
	for _, c := range cols {
		defs = append(defs, c.name+" "+c.sqlType)
		if c.foreign != "" {
			fks = append(fks, "foreign key("+c.name+") references "+c.foreign+"("+PrimaryKey+")")
		}
	}
	defs = append(defs, fks...)
	return "create table if not exists " + table + " (" + strings.Join(defs, ", ") + ")"
}

// Init binds e and its relation fields to the store. It panics with a
// *ContractError when e's type is not registered.
func (s *Store) Init(e Entity) {
	m, err := s.modelFor(reflect.TypeOf(e))
	if err != nil {
		panic(contractf("%v", err))
	}
	s.bind(m, e)
}

func (s *Store) bind(m *model, e Entity) {
	b := e.entityBase()
	b.store = s
	b.self = e

	v := reflect.ValueOf(e).Elem()
	for _, f := range m.refs {
		v.FieldByIndex(f.index).Addr().Interface().(referenceField).bind(s)
	}
	for _, f := range m.lists {
		v.FieldByIndex(f.index).Addr().Interface().(listField).bind(e, s, f.rel)
	}
}

func (s *Store) modelFor(t reflect.Type) (*model, error) {
	m, ok := s.models[t]
	if !ok {
		return nil, fmt.Errorf("%s: %w", t, types.ErrNotRegistered)
	}
	return m, nil
}

// snakeCase converts a Go identifier to a column name: "HomePort" becomes
// "home_port" and "CaptainID" becomes "captain_id".
func snakeCase(name string) string {
	rs := []rune(name)
	var sb strings.Builder
	for i, r := range rs {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := rs[i-1]
				nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					sb.WriteByte('_')
				}
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

package ldapdb

import (
	"context"
	"strings"

	ldap "github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/ldapdb/directory"
)

// RDN builds the entry's relative distinguished name from its primary
// key fields in declaration order, values RFC 4514-escaped and joined
// with "+". Returns an *IdentityError when no primary key field has a
// value.
func (e *Entry) RDN() (string, error) {
	var parts []string
	for _, f := range e.schema.primary {
		value, ok := e.values[f.Name]
		if !ok || f.isEmptyValue(value) {
			continue
		}
		s, err := f.encodeString(value)
		if err != nil {
			return "", err
		}
		parts = append(parts, f.Attr+"="+directory.EscapeDNValue(s))
	}
	if len(parts) == 0 {
		return "", &IdentityError{Reason: "no primary key field has a value"}
	}
	return strings.Join(parts, "+"), nil
}

// buildDN computes the DN the entry's current primary key values imply.
func (e *Entry) buildDN() (string, error) {
	rdn, err := e.RDN()
	if err != nil {
		return "", err
	}
	return rdn + "," + e.schema.baseDN, nil
}

// Save persists the entry. An entry with an empty DN slot is added; a
// persisted entry is diffed against its load-time snapshot and only the
// changed attributes are written. When primary key fields changed, the
// entry is renamed before any attribute modification and the naming
// attributes are omitted from the modlist, since the rename already
// applied them.
func (e *Entry) Save(ctx context.Context, conn directory.Conn) error {
	if e.dn == "" {
		return e.create(ctx, conn)
	}
	return e.update(ctx, conn)
}

func (e *Entry) create(ctx context.Context, conn directory.Conn) error {
	dn, err := e.buildDN()
	if err != nil {
		return err
	}

	classes := make([][]byte, len(e.schema.objectClasses))
	for i, class := range e.schema.objectClasses {
		classes[i] = []byte(class)
	}
	attrs := []directory.Attribute{{Name: "objectClass", Values: classes}}
	for i := range e.schema.fields {
		f := &e.schema.fields[i]
		value, ok := e.values[f.Name]
		if !ok || f.isEmptyValue(value) {
			continue
		}
		values, err := f.encode(value)
		if err != nil {
			return err
		}
		attrs = append(attrs, directory.Attribute{
			Name:   f.Attr,
			Values: values,
			Binary: f.Type == Binary,
		})
	}

	tflog.SubsystemDebug(ctx, logSubsystem, "adding entry", map[string]any{
		"dn":         dn,
		"attributes": len(attrs),
	})
	if err := conn.Add(ctx, dn, attrs); err != nil {
		return err
	}

	e.dn = dn
	e.loaded = e.snapshot()
	e.lastChanged = nil
	e.schema.signals.firePostCreate(ctx, e)
	return nil
}

func (e *Entry) update(ctx context.Context, conn directory.Conn) error {
	changed := e.changedFields()

	renamed := false
	if e.primaryKeyChanged(changed) {
		newDN, err := e.buildDN()
		if err != nil {
			return err
		}
		if !dnEqual(e.dn, newDN) {
			rdn, err := e.RDN()
			if err != nil {
				return err
			}
			tflog.SubsystemDebug(ctx, logSubsystem, "renaming entry", map[string]any{
				"dn":      e.dn,
				"new_rdn": rdn,
			})
			if err := conn.Rename(ctx, e.dn, rdn); err != nil {
				return err
			}
			e.dn = newDN
			renamed = true
		}
	}

	var mods []directory.Modification
	for _, name := range changed {
		f := e.schema.byName[name]
		if renamed && f.PrimaryKey {
			continue
		}
		value, ok := e.values[name]
		if !ok || f.isEmptyValue(value) {
			// only delete attributes that were actually present before
			if old, oldOK := e.loaded[name]; oldOK && !f.isEmptyValue(old) {
				mods = append(mods, directory.Modification{
					Op:   directory.ModDelete,
					Name: f.Attr,
				})
			}
			continue
		}
		values, err := f.encode(value)
		if err != nil {
			return err
		}
		mods = append(mods, directory.Modification{
			Op:     directory.ModReplace,
			Name:   f.Attr,
			Values: values,
			Binary: f.Type == Binary,
		})
	}

	if len(mods) > 0 {
		tflog.SubsystemDebug(ctx, logSubsystem, "modifying entry", map[string]any{
			"dn":            e.dn,
			"modifications": len(mods),
		})
		if err := conn.Modify(ctx, e.dn, mods); err != nil {
			return err
		}
	}

	e.loaded = e.snapshot()
	e.lastChanged = changed
	e.schema.signals.firePostUpdate(ctx, e)
	return nil
}

// changedFields lists the fields whose current value differs from the
// snapshot, in declaration order.
func (e *Entry) changedFields() []string {
	var changed []string
	for i := range e.schema.fields {
		f := &e.schema.fields[i]
		cur, curOK := e.values[f.Name]
		old, oldOK := e.loaded[f.Name]
		if curOK != oldOK {
			changed = append(changed, f.Name)
			continue
		}
		if curOK && !f.valuesEqual(cur, old) {
			changed = append(changed, f.Name)
		}
	}
	return changed
}

func (e *Entry) primaryKeyChanged(changed []string) bool {
	for _, name := range changed {
		if e.schema.byName[name].PrimaryKey {
			return true
		}
	}
	return false
}

// Delete removes the entry from the directory.
func (e *Entry) Delete(ctx context.Context, conn directory.Conn) error {
	if e.dn == "" {
		return &IdentityError{Reason: "entry has never been persisted"}
	}
	tflog.SubsystemDebug(ctx, logSubsystem, "deleting entry", map[string]any{
		"dn": e.dn,
	})
	if err := conn.Delete(ctx, e.dn); err != nil {
		return err
	}
	e.schema.signals.firePostDelete(ctx, e)
	return nil
}

// Refresh re-fetches the entry by its primary key values and replaces
// the entry's values and snapshot with the directory's current state.
func (e *Entry) Refresh(ctx context.Context, conn directory.Conn) error {
	if e.dn == "" {
		return &IdentityError{Reason: "entry has never been persisted"}
	}
	conds := make([]*Cond, 0, len(e.schema.primary))
	for _, f := range e.schema.primary {
		value, ok := e.values[f.Name]
		if !ok || f.isEmptyValue(value) {
			continue
		}
		conds = append(conds, Eq(f.Name, value))
	}
	if len(conds) == 0 {
		return &IdentityError{Reason: "no primary key field has a value"}
	}
	fresh, err := e.schema.Query().Filter(conds...).Get(ctx, conn)
	if err != nil {
		return err
	}
	e.dn = fresh.dn
	e.values = fresh.values
	e.loaded = fresh.loaded
	e.lastChanged = nil
	return nil
}

// dnEqual compares two DNs using the directory's equality rules,
// falling back to a case-insensitive string compare when parsing fails.
func dnEqual(a, b string) bool {
	da, errA := ldap.ParseDN(a)
	db, errB := ldap.ParseDN(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return da.EqualFold(db)
}

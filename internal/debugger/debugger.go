package debugger

import (
	"debug/dwarf"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/tidepool/internal/dwarf/die"
	"github.com/coral-mesh/tidepool/internal/dwarf/loader"
	"github.com/coral-mesh/tidepool/internal/dwarf/search"
	"github.com/coral-mesh/tidepool/internal/dwarf/typeinfo"
	"github.com/coral-mesh/tidepool/internal/dwarf/value"
	"github.com/coral-mesh/tidepool/internal/target"
)

// Profile describes the target machine: address width and byte order.
type Profile struct {
	AddressSize int
	ByteOrder   binary.ByteOrder
}

// NotFoundError reports a variable name with no DIE visible at the
// requested pc.
type NotFoundError struct {
	Name string
	PC   uint64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("no variable %q visible at pc 0x%x", e.Name, e.PC)
}

// Debugger aggregates the store, the type resolver and the target
// provider for one debug session, so the evaluation pipeline does not
// thread five parameters through every call. One Debugger per debugged
// target; the type cache inside the resolver is scoped to it.
type Debugger struct {
	sessionID string
	store     *die.Store
	resolver  *typeinfo.Resolver
	mat       *value.Materializer
	provider  target.Provider
	profile   Profile
	logger    zerolog.Logger
}

// New creates a session around an already-loaded store.
func New(store *die.Store, provider target.Provider, profile Profile, logger zerolog.Logger) *Debugger {
	if profile.ByteOrder == nil {
		profile.ByteOrder = binary.LittleEndian
	}
	if profile.AddressSize == 0 {
		profile.AddressSize = 8
	}

	sessionID := uuid.NewString()
	logger = logger.With().Str("component", "debugger").Str("session_id", sessionID).Logger()

	resolver := typeinfo.NewResolver(store, profile.AddressSize, logger)
	return &Debugger{
		sessionID: sessionID,
		store:     store,
		resolver:  resolver,
		mat:       value.NewMaterializer(resolver, profile.ByteOrder),
		provider:  provider,
		profile:   profile,
		logger:    logger,
	}
}

// FromImage creates a session for a loaded image, taking the target
// profile from the binary's headers.
func FromImage(img *loader.Image, provider target.Provider, logger zerolog.Logger) *Debugger {
	return New(img.Store, provider, Profile{
		AddressSize: img.AddressSize,
		ByteOrder:   img.ByteOrder,
	}, logger)
}

// SessionID identifies this debug session in logs.
func (d *Debugger) SessionID() string {
	return d.sessionID
}

// Store exposes the session's DIE store.
func (d *Debugger) Store() *die.Store {
	return d.store
}

// InvalidateTypes drops every cached type resolution. Must be called
// when the target image is reloaded: DIE offsets are only valid for one
// exact image.
func (d *Debugger) InvalidateTypes() {
	d.resolver.Invalidate()
}

// ResolveTypeOf resolves the type defined at the given DIE offset.
func (d *Debugger) ResolveTypeOf(offset dwarf.Offset) (typeinfo.Type, error) {
	return d.resolver.Resolve(offset)
}

// FindTypes returns every resolved type named name across all units.
// Candidates that fail to resolve are skipped.
func (d *Debugger) FindTypes(name string) ([]typeinfo.Type, error) {
	offsets, err := search.AllTypeDIEs(d.store, name)
	if err != nil {
		return nil, err
	}
	var out []typeinfo.Type
	for _, off := range offsets {
		t, err := d.resolver.Resolve(off)
		if err != nil {
			d.logger.Debug().Err(err).Uint64("offset", uint64(off)).Msg("Skipping unresolvable type candidate")
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// EvaluateVariable locates the variable visible as name at pc, executes
// its location expression against the target, and materializes the
// result as a typed value. A variable whose location is empty comes back
// as an explicit optimized-out value, not an error.
func (d *Debugger) EvaluateVariable(name string, pc uint64) (value.Value, error) {
	unit := d.store.UnitByPC(pc)
	if unit == nil {
		return value.Value{}, fmt.Errorf("no compilation unit covers pc 0x%x", pc)
	}

	match, err := search.Variable(d.store, unit, name, pc)
	if err != nil {
		return value.Value{}, err
	}
	if match == nil {
		return value.Value{}, NotFoundError{Name: name, PC: pc}
	}

	typ, err := d.variableType(match.Variable)
	if err != nil {
		return value.Value{}, err
	}

	expr, ok := match.Variable.BlockAttr(dwarf.AttrLocation)
	if !ok {
		// No location attribute at all: the compiler kept the
		// variable out of the generated code.
		return value.OptimizedOut(typ.String()), nil
	}

	pieces, err := d.runExpr(expr, unit, match.Subprogram, pc)
	if err != nil {
		return value.Value{}, fmt.Errorf("evaluate location of %q: %w", name, err)
	}
	if len(pieces) == 0 {
		return value.OptimizedOut(typ.String()), nil
	}

	data, located, err := d.collectBytes(pieces, typ.Common().ByteSize)
	if err != nil {
		return value.Value{}, fmt.Errorf("read location of %q: %w", name, err)
	}
	if !located {
		return value.OptimizedOut(typ.String()), nil
	}

	v, err := d.mat.Materialize(typ, data)
	if err != nil {
		return value.Value{}, fmt.Errorf("materialize %q: %w", name, err)
	}

	d.logger.Debug().
		Str("variable", name).
		Uint64("pc", pc).
		Str("type", typ.String()).
		Int("pieces", len(pieces)).
		Msg("Evaluated variable")

	return v, nil
}

// variableType resolves the variable's declared type, following
// DW_AT_abstract_origin for inlined copies that reference their
// abstract definition.
func (d *Debugger) variableType(v *die.DIE) (typeinfo.Type, error) {
	cur := v
	for depth := 0; depth < 8; depth++ {
		if off, ok := cur.TypeRef(); ok {
			return d.resolver.Resolve(off)
		}
		origin, ok := cur.Attr(dwarf.AttrAbstractOrigin)
		if !ok || origin.Class != die.ClassReference {
			break
		}
		next, err := d.store.DIE(origin.Ref)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return nil, typeinfo.MissingAttributeError{Offset: v.Offset, Attr: dwarf.AttrType}
}

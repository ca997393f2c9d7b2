package debugger

import (
	"debug/dwarf"
	"fmt"

	"github.com/coral-mesh/tidepool/internal/dwarf/die"
	"github.com/coral-mesh/tidepool/internal/dwarf/op"
	"github.com/coral-mesh/tidepool/internal/target"
)

// CFAProvider is implemented by providers that can compute the canonical
// frame address for a pc, typically from unwind tables. Unwinding itself
// is outside the engine; this is the hook for an external unwinder.
type CFAProvider interface {
	CFA(pc uint64) (uint64, error)
}

// runExpr drives one location expression to completion, answering each
// suspension with one round trip to the provider (or to the store for
// indexed addresses, or to a nested evaluation for the frame base).
func (d *Debugger) runExpr(expr []byte, unit *die.Unit, sub *die.DIE, pc uint64) ([]op.Piece, error) {
	ev := op.New(expr, op.Options{AddressSize: d.profile.AddressSize, ByteOrder: d.profile.ByteOrder})

	for {
		req, err := ev.Step()
		if err != nil {
			return nil, err
		}
		if req == nil {
			return ev.Pieces(), nil
		}

		switch r := req.(type) {
		case op.RequiresMemory:
			data, err := d.provider.ReadMemory(r.Addr, r.Size)
			if err != nil {
				return nil, err
			}
			if err := ev.ProvideMemory(data); err != nil {
				return nil, err
			}

		case op.RequiresRegister:
			v, err := d.provider.ReadRegister(r.Reg)
			if err != nil {
				return nil, err
			}
			if err := ev.ProvideRegister(v); err != nil {
				return nil, err
			}

		case op.RequiresFrameBase:
			fb, err := d.frameBase(unit, sub, pc)
			if err != nil {
				return nil, err
			}
			if err := ev.ProvideFrameBase(fb); err != nil {
				return nil, err
			}

		case op.RequiresCFA:
			cfa, ok := d.provider.(CFAProvider)
			if !ok {
				return nil, fmt.Errorf("expression needs the call frame address but the provider has no unwinder")
			}
			addr, err := cfa.CFA(pc)
			if err != nil {
				return nil, err
			}
			if err := ev.ProvideCFA(addr); err != nil {
				return nil, err
			}

		case op.RequiresParameterRef:
			v, err := d.parameterValue(r.Ref, unit, sub, pc)
			if err != nil {
				return nil, err
			}
			if err := ev.ProvideParameterValue(v); err != nil {
				return nil, err
			}

		case op.RequiresIndexedAddress:
			addr, err := d.store.IndexedAddr(unit, r.Index, d.profile.AddressSize, d.profile.ByteOrder)
			if err != nil {
				return nil, err
			}
			if err := ev.ProvideAddress(addr); err != nil {
				return nil, err
			}

		case op.RequiresTLS:
			tls, ok := d.provider.(target.TLSResolver)
			if !ok {
				return nil, fmt.Errorf("expression needs TLS translation but the provider cannot resolve TLS")
			}
			addr, err := tls.ResolveTLS(r.Offset)
			if err != nil {
				return nil, err
			}
			if err := ev.ProvideAddress(addr); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("unanswerable requirement %T", req)
		}
	}
}

// frameBase evaluates the enclosing subprogram's DW_AT_frame_base
// expression. The result is a register or address location whose word
// value anchors DW_OP_fbreg offsets.
func (d *Debugger) frameBase(unit *die.Unit, sub *die.DIE, pc uint64) (uint64, error) {
	if sub == nil {
		return 0, fmt.Errorf("frame-relative location outside any function scope")
	}
	expr, ok := sub.BlockAttr(dwarf.AttrFrameBase)
	if !ok {
		return 0, fmt.Errorf("function at 0x%x has no frame base", uint64(sub.Offset))
	}

	// The nested evaluation must not itself be frame-relative.
	pieces, err := d.runExpr(expr, unit, nil, pc)
	if err != nil {
		return 0, fmt.Errorf("evaluate frame base: %w", err)
	}
	if len(pieces) != 1 {
		return 0, fmt.Errorf("frame base resolved to %d pieces, want one", len(pieces))
	}

	switch p := pieces[0]; p.Kind {
	case op.PieceAddress:
		return p.Addr, nil
	case op.PieceRegister:
		d.logger.Debug().Str("register", target.RegisterName(p.Reg)).Msg("Frame base held in register")
		return d.provider.ReadRegister(p.Reg)
	default:
		return 0, fmt.Errorf("frame base resolved to %s", p)
	}
}

// parameterValue resolves a DW_OP_GNU_parameter_ref: the referenced
// formal parameter's call value expression is evaluated and its word
// value is handed back to the suspended evaluation.
func (d *Debugger) parameterValue(ref dwarf.Offset, unit *die.Unit, sub *die.DIE, pc uint64) (uint64, error) {
	pdie, err := d.store.DIE(ref)
	if err != nil {
		return 0, fmt.Errorf("parameter reference: %w", err)
	}
	expr, ok := pdie.BlockAttr(dwarf.AttrCallValue)
	if !ok {
		return 0, fmt.Errorf("referenced parameter at 0x%x has no call value", uint64(ref))
	}

	pieces, err := d.runExpr(expr, unit, sub, pc)
	if err != nil {
		return 0, fmt.Errorf("evaluate parameter value: %w", err)
	}
	data, located, err := d.collectBytes(pieces, int64(d.profile.AddressSize))
	if err != nil {
		return 0, err
	}
	if !located {
		return 0, fmt.Errorf("referenced parameter at 0x%x is optimized out", uint64(ref))
	}

	return d.readWord(data), nil
}

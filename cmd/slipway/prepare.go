package main

import (
	"context"
	"fmt"

	"github.com/slipwayhq/slipway/pkg/loader"
	"github.com/slipwayhq/slipway/pkg/primitives"
	"github.com/slipwayhq/slipway/pkg/rig"
)

// prepared holds everything a session.New call needs for one rig
// document: every handle's resolved, schema-compiled component and
// the files its sandbox runner will read from.
type prepared struct {
	rig        *rig.Rig
	components map[primitives.Handle]*rig.Component
	files      map[primitives.Handle]loader.ComponentFiles
}

// prepareRig parses a rig document and resolves every handle's
// component reference through l, compiling each component's schemas
// along the way (§4.1 resolution followed by §4.3 component parsing).
func prepareRig(ctx context.Context, l *loader.Loader, data []byte) (*prepared, []rig.Warning, error) {
	res, err := rig.Parse(data)
	if err != nil {
		return nil, nil, err
	}

	components := make(map[primitives.Handle]*rig.Component, len(res.Rig.Rigging))
	files := make(map[primitives.Handle]loader.ComponentFiles, len(res.Rig.Rigging))

	for h, cr := range res.Rig.Rigging {
		loaded, err := l.Resolve(ctx, cr.Reference)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving %q: %w", h, err)
		}

		component, err := loadComponentDef(loaded)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing component for %q: %w", h, err)
		}

		components[h] = component
		files[h] = loaded.Files
	}

	return &prepared{rig: res.Rig, components: components, files: files}, res.Warnings, nil
}

func loadComponentDef(loaded *loader.LoadedComponent) (*rig.Component, error) {
	defBytes, err := loaded.Files.GetBin("slipway_component.json")
	if err != nil {
		return nil, err
	}
	return rig.ParseComponent(defBytes, loaded.Files)
}

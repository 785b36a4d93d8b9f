package tweak

import "mirage-tweaks/pkg/patch"

// group is a multi-patch enable: value carries the tunable value, set owns
// every patch including value and releases them in reverse.
type group[N Number] struct {
	value *patch.Patch[N]
	set   *patch.Set
}

func (g *group[N]) Update(v N) error {
	return g.value.Update(v)
}

func (g *group[N]) Release() {
	g.set.Release()
}

// single adapts one patch to Live.
func single[N Number](p *patch.Patch[N], err error) (Live[N], error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

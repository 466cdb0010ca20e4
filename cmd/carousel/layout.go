package main

import (
	"fmt"

	carousel "github.com/menta2k/image-carousel"
	"github.com/menta2k/image-carousel/internal/config"
	"github.com/menta2k/image-carousel/pkg/grid"
)

// layoutFlags override the layout section of the configuration
type layoutFlags struct {
	Split   int     `help:"Number of tiles (2-10)" short:"n"`
	Ratio   string  `help:"Tile aspect ratio: portrait (4:5), classic (3:4), square (1:1) or W:H" short:"r"`
	Scale   float64 `help:"Fraction of the maximum tile width to use (0,1]"`
	Align   string  `help:"Vertical alignment: top, center, bottom, custom or subject" short:"a"`
	HAlign  string  `help:"Horizontal alignment: left, center, right or custom" name:"halign"`
	VOffset float64 `help:"Vertical offset ratio for custom alignment" name:"v-offset"`
	HOffset float64 `help:"Horizontal offset ratio for custom alignment" name:"h-offset"`
}

// apply merges the flags over the configured layout
func (f layoutFlags) apply(l config.LayoutConfig) config.LayoutConfig {
	if f.Split != 0 {
		l.SplitCount = f.Split
	}
	if f.Ratio != "" {
		l.AspectRatio = f.Ratio
	}
	if f.Scale != 0 {
		l.ScalePercent = f.Scale
	}
	if f.Align != "" {
		l.Alignment = f.Align
	}
	if f.HAlign != "" {
		l.HAlign = f.HAlign
	}
	return l
}

// request builds a split request from the merged layout
func (f layoutFlags) request(defaults config.LayoutConfig) (carousel.Request, error) {
	l := f.apply(defaults)
	if err := grid.ValidateSplitCount(l.SplitCount); err != nil {
		return carousel.Request{}, err
	}
	params, err := l.Parameters()
	if err != nil {
		return carousel.Request{}, err
	}
	if !grid.ValidRatio(f.VOffset) || !grid.ValidRatio(f.HOffset) {
		return carousel.Request{}, fmt.Errorf("offset ratios must be in [0,1]")
	}

	req := carousel.Request{Params: params}
	if l.Alignment == "subject" {
		req.FollowSubject = true
	} else if req.Placement.Vertical, err = grid.ParseAlignment(l.Alignment); err != nil {
		return carousel.Request{}, err
	}
	if req.Placement.Horizontal, err = grid.ParseAlignment(l.HAlign); err != nil {
		return carousel.Request{}, err
	}
	req.Placement.VerticalCustom = f.VOffset
	req.Placement.HorizontalCustom = f.HOffset
	return req, nil
}

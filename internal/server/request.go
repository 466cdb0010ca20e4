package server

import (
	"fmt"
	"strings"

	carousel "github.com/menta2k/image-carousel"
	"github.com/menta2k/image-carousel/internal/config"
	"github.com/menta2k/image-carousel/pkg/grid"
)

// layoutRequest is shared by the JSON plan endpoint and the multipart split endpoint
type layoutRequest struct {
	Width            int     `json:"width" form:"width"`
	Height           int     `json:"height" form:"height"`
	SplitCount       int     `json:"split_count" form:"split_count"`
	AspectRatio      string  `json:"aspect_ratio" form:"aspect_ratio"`
	ScalePercent     float64 `json:"scale_percent" form:"scale_percent"`
	Alignment        string  `json:"alignment" form:"alignment"`
	HAlign           string  `json:"halign" form:"halign"`
	VerticalOffset   float64 `json:"vertical_offset" form:"vertical_offset"`
	HorizontalOffset float64 `json:"horizontal_offset" form:"horizontal_offset"`
	// preview geometry for custom drags
	PreviewWidth  float64 `json:"preview_width" form:"preview_width"`
	PreviewHeight float64 `json:"preview_height" form:"preview_height"`
	PreviewOffset float64 `json:"preview_offset" form:"preview_offset"`
	Collection    string  `json:"collection" form:"collection"`
}

type previewInfo struct {
	GridHeight float64 `json:"grid_height,omitempty"`
	Offset     float64 `json:"offset,omitempty"`
}

func (r layoutRequest) toRequest(defaults config.LayoutConfig) (carousel.Request, previewInfo, error) {
	var preview previewInfo

	split := r.SplitCount
	if split == 0 {
		split = defaults.SplitCount
	}
	if err := grid.ValidateSplitCount(split); err != nil {
		return carousel.Request{}, preview, err
	}

	ratioName := r.AspectRatio
	if ratioName == "" {
		ratioName = defaults.AspectRatio
	}
	ratio, err := grid.LookupAspectRatio(ratioName)
	if err != nil {
		return carousel.Request{}, preview, err
	}

	params := grid.DefaultParameters(split, ratio)
	switch {
	case r.ScalePercent > 0:
		params.ScalePercent = r.ScalePercent
	case defaults.ScalePercent > 0:
		params.ScalePercent = defaults.ScalePercent
	}

	req := carousel.Request{Params: params}

	valign := strings.ToLower(r.Alignment)
	if valign == "" {
		valign = defaults.Alignment
	}
	if valign == "subject" {
		req.FollowSubject = true
	} else {
		if req.Placement.Vertical, err = grid.ParseAlignment(valign); err != nil {
			return carousel.Request{}, preview, err
		}
		req.Placement.VerticalCustom = r.VerticalOffset
		if req.Placement.Vertical == grid.AlignCustom && r.PreviewWidth > 0 && r.PreviewHeight > 0 {
			preview.GridHeight = grid.PreviewGridHeight(r.PreviewWidth, split, ratio)
			preview.Offset = grid.ClampPreviewOffset(r.PreviewOffset, r.PreviewHeight, preview.GridHeight)
			req.Placement.VerticalCustom = grid.FromPreview(preview.Offset, r.PreviewHeight)
		}
	}

	halign := r.HAlign
	if halign == "" {
		halign = defaults.HAlign
	}
	if req.Placement.Horizontal, err = grid.ParseAlignment(halign); err != nil {
		return carousel.Request{}, preview, err
	}
	req.Placement.HorizontalCustom = r.HorizontalOffset

	if !grid.ValidRatio(r.VerticalOffset) || !grid.ValidRatio(r.HorizontalOffset) {
		return carousel.Request{}, preview, fmt.Errorf("offset ratios must be in [0,1]")
	}
	return req, preview, nil
}

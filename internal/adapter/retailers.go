package adapter

import "github.com/FranksOps/shopscrape/internal/product"

// CellphonesRules targets cellphones.com.vn product pages.
var CellphonesRules = Rules{
	Source:      product.SourceCellphones,
	Origin:      "https://cellphones.com.vn",
	ReadyMarker: ".box-product-name h1",

	Name:          ".box-product-name h1",
	Price:         ".product__price--show",
	OriginalPrice: ".product__price--through",
	Currency:      "VND",
	Description:   ".ksp-content",

	Images:     ".gallery-slide img",
	ImageAttrs: []string{"data-src", "src"},

	SpecRows:  ".technical-content-item",
	SpecName:  "td:nth-child(1)",
	SpecValue: "td:nth-child(2)",

	Rating:      ".boxReview-score .title",
	RatingCount: ".boxReview-score .total-review",

	Availability:   ".box-product-status",
	OutOfStock:     []string{".box-out-of-stock", ".btn-notify-stock"},
	OutOfStockText: []string{"hết hàng", "ngừng kinh doanh", "tạm hết"},

	PlaceholderMarkers: []string{"placeholder", "no-image"},
}

// TheGioiDiDongRules targets thegioididong.com product pages.
var TheGioiDiDongRules = Rules{
	Source:      product.SourceTheGioiDiDong,
	Origin:      "https://www.thegioididong.com",
	ReadyMarker: ".detail .box_main",

	Name:          ".detail h1",
	Brand:         ".detail .brand-name",
	Price:         ".box-price-present",
	OriginalPrice: ".box-price-old",
	Currency:      "VND",
	Description:   ".article__content",

	Images:     ".detail-slider .item-img img",
	ImageAttrs: []string{"data-src", "src"},

	SpecRows:  ".parameter__list li",
	SpecName:  ".lileft",
	SpecValue: ".liright",

	Rating:      ".detail-rate .point",
	RatingCount: ".detail-rate .total-rate",

	Availability:   ".productstatus",
	OutOfStock:     []string{".box-out-of-stock"},
	OutOfStockText: []string{"hết hàng", "ngừng kinh doanh"},

	PlaceholderMarkers: []string{"placeholder", "no-image", "noimage"},
}

// DefaultRules lists the rules for every supported retailer.
func DefaultRules() []Rules {
	return []Rules{CellphonesRules, TheGioiDiDongRules}
}

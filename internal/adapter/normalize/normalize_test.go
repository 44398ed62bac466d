package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/FranksOps/shopscrape/internal/product"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"25.000.000đ", 25000000},
		{"25,000,000", 25000000},
		{"Giá: 1.990.000 ₫", 1990000},
		{"  34.990.000đ  29.990.000đ", 34990000},
		{"Liên hệ", 0},
		{"", 0},
		{"799", 799},
	}
	for _, tt := range tests {
		got, err := ParsePrice(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}

func TestParsePrice_Overflow(t *testing.T) {
	_, err := ParsePrice(strings.Repeat("9", 30))
	require.Error(t, err)
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		in   string
		want product.Rating
	}{
		{"4.5 (100)", product.Rating{Average: 4.5, Count: 100}},
		{"4,8 (1.234)", product.Rating{Average: 4.8, Count: 1234}},
		{"(12) 3.9", product.Rating{Average: 3.9, Count: 12}},
		{"5 sao", product.Rating{Average: 5}},
		{"(7)", product.Rating{Count: 7}},
		{"(4.5)", product.Rating{Average: 4.5}},
		{"(4,5) (12)", product.Rating{Average: 4.5, Count: 12}},
		{"Chưa có đánh giá", product.Rating{}},
		{"", product.Rating{}},
	}
	for _, tt := range tests {
		got, err := ParseRating(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}

func TestResolveImages(t *testing.T) {
	in := []product.Image{
		{URL: "/media/catalog/product/iphone-15.jpg", Alt: " iPhone 15 "},
		{URL: "https://cdn.example.com/a.png"},
		{URL: "/static/placeholder.png"},
		{URL: "https://cdn.example.com/Placeholder/b.png"},
		{URL: "data:image/gif;base64,R0lGODlhAQABAAAAACw="},
		{URL: "   "},
		{URL: "//cdn2.example.com/c.webp"},
	}
	got := ResolveImages("https://cellphones.com.vn", in, nil)
	want := []product.Image{
		{URL: "https://cellphones.com.vn/media/catalog/product/iphone-15.jpg", Alt: "iPhone 15"},
		{URL: "https://cdn.example.com/a.png"},
		{URL: "https://cdn2.example.com/c.webp"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ResolveImages mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveImages_CustomMarkers(t *testing.T) {
	in := []product.Image{{URL: "/img/no-image.jpg"}, {URL: "/img/placeholder.jpg"}}
	got := ResolveImages("https://www.thegioididong.com", in, []string{"no-image"})
	require.Len(t, got, 1)
	require.Equal(t, "https://www.thegioididong.com/img/placeholder.jpg", got[0].URL)
}

func TestParseSpecifications(t *testing.T) {
	lines := []string{
		"Màn hình: 6.1 inch",
		"Chip xử lý",
		"Camera sau: 48 MP, f/1.6",
		": orphan value",
		"Thời gian: 10:30",
	}
	got := ParseSpecifications(lines)
	want := []product.Specification{
		{Name: "Màn hình", Value: "6.1 inch"},
		{Name: "Camera sau", Value: "48 MP, f/1.6"},
		{Name: "Thời gian", Value: "10:30"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseSpecifications mismatch (-want +got):\n%s", diff)
	}
}

func TestDeriveID(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	tests := []struct {
		url  string
		want string
	}{
		{"https://cellphones.com.vn/iphone-15-pro-max.html", "iphone-15-pro-maxhtml"},
		{"https://www.thegioididong.com/dtdd/samsung-galaxy-s24/", "samsung-galaxy-s24"},
		{"https://www.thegioididong.com/dtdd/s24?utm=x", "s24"},
		{"https://cellphones.com.vn/", "cellphones-1700000000000"},
		{"https://cellphones.com.vn/%E2%9C%93", "cellphones-1700000000000"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, DeriveID(product.SourceCellphones, tt.url, now), tt.url)
	}
}

func TestDeriveID_Stable(t *testing.T) {
	u := "https://cellphones.com.vn/samsung-galaxy-a55.html"
	a := DeriveID(product.SourceCellphones, u, time.Now())
	b := DeriveID(product.SourceCellphones, u, time.Now().Add(time.Hour))
	require.Equal(t, a, b)
}

func TestDefaultBrand(t *testing.T) {
	require.Equal(t, "Samsung", DefaultBrand("  Samsung Galaxy S24 Ultra"))
	require.Equal(t, "", DefaultBrand("   "))
}

package normalizer

import (
	"regexp"
	"strings"
)

var municipalities = []string{"北京市", "天津市", "上海市", "重庆市"}

// provinces is the fixed list of province-level divisions.
var provinces = []string{
	"北京市", "天津市", "上海市", "重庆市",
	"河北省", "山西省", "辽宁省", "吉林省", "黑龙江省",
	"江苏省", "浙江省", "安徽省", "福建省", "江西省", "山东省",
	"河南省", "湖北省", "湖南省", "广东省", "海南省",
	"四川省", "贵州省", "云南省", "陕西省", "甘肃省", "青海省", "台湾省",
	"内蒙古自治区", "广西壮族自治区", "西藏自治区", "宁夏回族自治区", "新疆维吾尔自治区",
	"香港特别行政区", "澳门特别行政区",
}

// cityPattern takes the shortest 2-4 character name followed by a city-level suffix.
var cityPattern = regexp.MustCompile(`^(.{2,4}?)(市|地区|州|盟)`)

const cityTrimSet = " ,，.。"

// SplitAddress segments a registered address into province and city.
// City is nil for the direct-administered municipalities and whenever no city can be found.
func SplitAddress(address string) (province, city *string) {
	addr := strings.TrimSpace(address)
	if addr == "" {
		return nil, nil
	}

	for _, m := range municipalities {
		if strings.HasPrefix(addr, m) {
			return ptr(m), nil
		}
	}

	// 住所中で最も前に現れる省級行政区を採用します
	best, bestIdx := "", -1
	for _, p := range provinces {
		idx := strings.Index(addr, p)
		if idx >= 0 && (bestIdx < 0 || idx < bestIdx) {
			best, bestIdx = p, idx
		}
	}
	if bestIdx >= 0 {
		if isMunicipality(best) {
			return ptr(best), nil
		}
		rest := strings.TrimLeft(addr[bestIdx+len(best):], cityTrimSet)
		return ptr(best), extractCity(rest)
	}

	left, right, found := strings.Cut(addr, "省")
	if !found || left == "" {
		return nil, nil
	}
	province = ptr(left + "省")
	if cityName, _, ok := strings.Cut(right, "市"); ok && cityName != "" {
		city = ptr(cityName + "市")
	}
	return province, city
}

func extractCity(rest string) *string {
	if rest == "" {
		return nil
	}
	if m := cityPattern.FindString(rest); m != "" {
		return ptr(m)
	}
	runes := []rune(rest)
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return ptr(string(runes))
}

func isMunicipality(p string) bool {
	for _, m := range municipalities {
		if m == p {
			return true
		}
	}
	return false
}

func ptr(s string) *string { return &s }

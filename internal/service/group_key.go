package service

import (
	"fmt"
	"regexp"
	"strings"
)

// termYearPattern 学期字符串格式："<学期号>/<学年>"，如 "1/2567"
var termYearPattern = regexp.MustCompile(`^(\d+)/(\d+)$`)

// ParseTermYear 拆分学期字符串，返回学期号与学年
func ParseTermYear(termYear string) (term, year string, err error) {
	m := termYearPattern.FindStringSubmatch(strings.TrimSpace(termYear))
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidTermYear, termYear)
	}
	return m[1], m[2], nil
}

// DeriveGroupKey 生成合班组键
//   - 未拆分："<subjectCode>-<term>/<year>"，如 "CS101-1/2567"
//   - 拆分部分："<subjectCode>-<part>-<term>/<year>"，如 "CS101-2-1/2567"
//
// part 最多传一个，且必须为正整数。
func DeriveGroupKey(subjectCode, termYear string, part ...int) (string, error) {
	subjectCode = strings.TrimSpace(subjectCode)
	if subjectCode == "" {
		return "", ErrInvalidSubjectCode
	}
	term, year, err := ParseTermYear(termYear)
	if err != nil {
		return "", err
	}

	switch len(part) {
	case 0:
		return fmt.Sprintf("%s-%s/%s", subjectCode, term, year), nil
	case 1:
		if part[0] <= 0 {
			return "", ErrInvalidPartNumber
		}
		return fmt.Sprintf("%s-%d-%s/%s", subjectCode, part[0], term, year), nil
	default:
		return "", ErrInvalidPartNumber
	}
}

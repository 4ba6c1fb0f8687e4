package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairKeyForIsOrderIndependent(t *testing.T) {
	assert.Equal(t, PairKeyFor(1, 2), PairKeyFor(2, 1))
	assert.Equal(t, "1:2", PairKeyFor(2, 1))
	assert.NotEqual(t, PairKeyFor(1, 2), PairKeyFor(1, 3))
	// 不能用字符串拼接产生歧义："1:23" 和 "12:3" 必须不同
	assert.NotEqual(t, PairKeyFor(1, 23), PairKeyFor(12, 3))
}

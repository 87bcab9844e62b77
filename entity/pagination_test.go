package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"campaigner/pkg/goutil"
)

func TestPaginationGetPage(t *testing.T) {
	var nilPagination *Pagination
	assert.Equal(t, uint32(1), nilPagination.GetPage())
	assert.Equal(t, uint32(1), (&Pagination{}).GetPage())

	// an explicit page 0 must not underflow the offset, it means page 1
	assert.Equal(t, uint32(1), (&Pagination{Page: goutil.Uint32(0)}).GetPage())

	assert.Equal(t, uint32(1), (&Pagination{Page: goutil.Uint32(1)}).GetPage())
	assert.Equal(t, uint32(7), (&Pagination{Page: goutil.Uint32(7)}).GetPage())
}

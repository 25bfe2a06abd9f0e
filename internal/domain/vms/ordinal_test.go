package vms_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/vms-fiscal/internal/domain/vms"
)

func TestOrdinal_SufijosIngles(t *testing.T) {
	cases := map[int]string{
		1: "1st", 2: "2nd", 3: "3rd", 4: "4th",
		11: "11th", 12: "12th", 13: "13th",
		21: "21st", 22: "22nd", 23: "23rd",
		101: "101st", 111: "111th", 112: "112th",
	}
	for n, want := range cases {
		assert.Equal(t, want, vms.Ordinal(n), "ordinal de %d", n)
	}
}

func TestInstallmentLabel(t *testing.T) {
	assert.Equal(t, "2nd Installment", vms.InstallmentLabel(2))
	assert.Equal(t, "13th Installment", vms.InstallmentLabel(13))
}

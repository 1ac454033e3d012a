package enum

// ContractType call, put, digit even, digit odd, digit over, digit under
type ContractType uint8

const (
	_contract_type_beg ContractType = iota
	ContractTypeCall
	ContractTypePut
	ContractTypeDigitEven
	ContractTypeDigitOdd
	ContractTypeDigitOver
	ContractTypeDigitUnder
	_contract_type_end
)

func (c ContractType) IsAvailable() bool {
	return c > _contract_type_beg && c < _contract_type_end
}

// WireCode returns the counterparty contract_type code.
func (c ContractType) WireCode() string {
	switch c {
	case ContractTypeCall:
		return "CALL"
	case ContractTypePut:
		return "PUT"
	case ContractTypeDigitEven:
		return "DIGITEVEN"
	case ContractTypeDigitOdd:
		return "DIGITODD"
	case ContractTypeDigitOver:
		return "DIGITOVER"
	case ContractTypeDigitUnder:
		return "DIGITUNDER"
	default:
		return ""
	}
}

// ParseContractType resolves a counterparty contract_type code.
func ParseContractType(code string) (ContractType, bool) {
	for c := _contract_type_beg + 1; c < _contract_type_end; c++ {
		if c.WireCode() == code {
			return c, true
		}
	}
	return _contract_type_beg, false
}

// IsDigit reports whether the contract settles on the tick's last digit.
func (c ContractType) IsDigit() bool {
	switch c {
	case ContractTypeDigitEven, ContractTypeDigitOdd, ContractTypeDigitOver, ContractTypeDigitUnder:
		return true
	default:
		return false
	}
}

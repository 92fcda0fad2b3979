package httpapi

import "council/internal/council"

// stage1Tag/stage2Tag/stage3Tag translate the in-process event unions back
// to the wire-level SSE event names named in spec §6.1.
func stage1Tag(ev council.Stage1Event) string {
	switch ev.(type) {
	case council.Stage1Token:
		return "stage1_token"
	case council.Stage1ModelComplete:
		return "stage1_model_complete"
	case council.Stage1ModelError:
		return "stage1_model_error"
	case council.Stage1Timeout:
		return "stage1_timeout"
	case council.Stage1Insufficient:
		return "stage1_insufficient"
	case council.Stage1AllComplete:
		return "stage1_all_complete"
	default:
		return "stage1_unknown"
	}
}

func stage2Tag(ev council.Stage2Event) string {
	switch ev.(type) {
	case council.Stage2Token:
		return "stage2_token"
	case council.Stage2ModelComplete:
		return "stage2_model_complete"
	case council.Stage2ModelError:
		return "stage2_model_error"
	case council.Stage2Timeout:
		return "stage2_timeout"
	case council.Stage2Insufficient:
		return "stage2_insufficient"
	case council.Stage2AllComplete:
		return "stage2_all_complete"
	default:
		return "stage2_unknown"
	}
}

func stage3Tag(ev council.Stage3Event) string {
	switch ev.(type) {
	case council.Stage3Token:
		return "stage3_token"
	case council.Stage3Truncated:
		return "stage3_truncated"
	case council.Stage3Fallback:
		return "stage3_fallback"
	case council.Stage3Error:
		return "stage3_error"
	case council.Stage3Timeout:
		return "stage3_timeout"
	case council.Stage3Complete:
		return "stage3_complete"
	default:
		return "stage3_unknown"
	}
}

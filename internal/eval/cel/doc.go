// Package cel provides a CEL (Common Expression Language) evaluator for deterministic routing.
//
// CEL is a non-Turing complete expression language that provides fast, safe evaluation
// of conditions for routing decisions. Conditions see a single variable, email, holding
// the classification fields of the record being routed.
//
// Example usage:
//
//	evaluator, err := cel.NewEvaluator()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	vars := map[string]interface{}{
//	    "email": map[string]interface{}{
//	        "intent":  "billing",
//	        "urgency": "high",
//	    },
//	}
//
//	matched, err := evaluator.EvaluateBool(ctx, "email.intent == 'billing'", vars)
//
// Supported operations:
//   - Comparisons: ==, !=, <, <=, >, >=
//   - Boolean logic: &&, ||, !
//   - String operations: contains, startsWith, endsWith, matches
//   - List operations: in, size
//   - Map access: email.field, email["field"]
package cel

// Package forecast trains and serves the demand forecasting model: a small
// fully connected regression network over tabular features.
//
// The flow mirrors how the model is used from the forecast page:
//
//	ds, err := forecast.Prepare(table, cfg.Target)
//	train, test := forecast.Split(ds.Len(), cfg.TestSize, cfg.Seed)
//	scaler := forecast.FitScaler(ds.Rows(train))
//	net, history, err := forecast.Train(ctx, scaler.Transform(ds.Rows(train)), ds.Targets(train), opts)
//	mse, preds := forecast.Evaluate(net, scaler.Transform(ds.Rows(test)), ds.Targets(test))
//
// Forecaster wraps these steps together with model persistence.
package forecast
